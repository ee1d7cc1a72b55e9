package imap

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"relay-backend/pkg/mimetree"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
)

// Service is a mail adapter for generic IMAP mailboxes. It serves the
// same candidate/metadata/full-message operations as the Gmail adapter,
// keyed by IMAP UID instead of a provider message id.
type Service struct {
	address  string
	username string
	password string
}

func NewService(address, username, password string) *Service {
	return &Service{
		address:  address,
		username: username,
		password: password,
	}
}

// Candidate mirrors the Gmail adapter's candidate shape; IMAP has no
// thread ids, so ThreadID is the UID as well.
type Candidate struct {
	ID       string
	ThreadID string
}

// MessageMetadata is the header subset used for classification.
type MessageMetadata struct {
	ID       string
	ThreadID string
	Subject  string
	From     string
	ListID   string
	SentAt   time.Time
}

func (s *Service) connect() (*client.Client, error) {
	c, err := client.DialTLS(s.address, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial failed: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}
	return c, nil
}

// ListCandidates searches INBOX for messages newer than the time window.
// Platform filtering happens later in the classifier, so the search is
// date-bounded only.
func (s *Service) ListCandidates(timeWindowDays, maxMessages int) ([]Candidate, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("imap select failed: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -timeWindowDays)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}

	if len(uids) > maxMessages {
		uids = uids[len(uids)-maxMessages:]
	}

	candidates := make([]Candidate, 0, len(uids))
	for _, uid := range uids {
		id := strconv.FormatUint(uint64(uid), 10)
		candidates = append(candidates, Candidate{ID: id, ThreadID: id})
	}
	return candidates, nil
}

// FetchMetadata retrieves the envelope and List-Id header for one message.
func (s *Service) FetchMetadata(id string) (*MessageMetadata, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid imap uid %q: %w", id, err)
	}

	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("imap select failed: %w", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier}}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", err)
	}
	if msg == nil || msg.Envelope == nil {
		return nil, fmt.Errorf("imap message %s not found", id)
	}

	listID := ""
	if body := msg.GetBody(section); body != nil {
		if entity, err := message.Read(body); err == nil {
			listID = entity.Header.Get("List-Id")
		}
	}

	from := ""
	if len(msg.Envelope.From) > 0 {
		from = msg.Envelope.From[0].Address()
		if name := msg.Envelope.From[0].PersonalName; name != "" {
			from = fmt.Sprintf("%s <%s>", name, msg.Envelope.From[0].Address())
		}
	}

	return &MessageMetadata{
		ID:       id,
		ThreadID: id,
		Subject:  msg.Envelope.Subject,
		From:     from,
		ListID:   listID,
		SentAt:   msg.Envelope.Date,
	}, nil
}

// FetchFullMessage downloads the raw message and converts it into the
// provider-neutral part tree consumed by the normalizer.
func (s *Service) FetchFullMessage(id string) (*mimetree.Part, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid imap uid %q: %w", id, err)
	}

	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("imap select failed: %w", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("imap message %s not found", id)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, nil
	}

	entity, err := message.Read(body)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse imap message: %w", err)
	}
	return convertEntity(entity), nil
}

// convertEntity normalizes a parsed MIME entity into the base64url part
// tree shape shared with the Gmail adapter.
func convertEntity(entity *message.Entity) *mimetree.Part {
	mimeType, _, err := entity.Header.ContentType()
	if err != nil {
		mimeType = "text/plain"
	}
	node := &mimetree.Part{MimeType: mimeType}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
			node.Parts = append(node.Parts, convertEntity(part))
		}
		return node
	}

	if strings.HasPrefix(strings.ToLower(mimeType), "text/") {
		if data, err := io.ReadAll(entity.Body); err == nil {
			node.Data = base64.URLEncoding.EncodeToString(data)
		}
	}
	return node
}
