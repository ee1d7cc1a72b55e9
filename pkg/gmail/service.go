package gmail

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"relay-backend/pkg/mimetree"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is called whenever the underlying token source mints a
// new access token, so the caller can persist the rotation.
type TokenUpdateFunc func(token *oauth2.Token) error

// Candidate is one message id returned by the newsletter search.
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

type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// newGmailService creates a Gmail client for the user's tokens, wiring a
// refresh-detection callback into the token source.
func (s *Service) newGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// ListCandidates pages through the search results for the query until
// maxMessages candidates are collected or the results run out.
func (s *Service) ListCandidates(ctx context.Context, accessToken, refreshToken, query string, maxMessages int, onTokenRefresh TokenUpdateFunc) ([]Candidate, error) {
	srv, err := s.newGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0)
	pageToken := ""
	for len(candidates) < maxMessages {
		call := srv.Users.Messages.List("me").Q(query).MaxResults(100).IncludeSpamTrash(false)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail list failed: %w", err)
		}

		for _, msg := range resp.Messages {
			candidates = append(candidates, Candidate{ID: msg.Id, ThreadID: msg.ThreadId})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(candidates) > maxMessages {
		candidates = candidates[:maxMessages]
	}
	return candidates, nil
}

// FetchMetadata retrieves just the headers needed for classification.
func (s *Service) FetchMetadata(ctx context.Context, accessToken, refreshToken, id string, onTokenRefresh TokenUpdateFunc) (*MessageMetadata, error) {
	srv, err := s.newGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).
		Format("metadata").
		MetadataHeaders("From", "Subject", "List-Id", "Date").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Gmail metadata: %w", err)
	}

	headers := indexHeaders(msg.Payload)
	return &MessageMetadata{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  headers["subject"],
		From:     headers["from"],
		ListID:   headers["list-id"],
		SentAt:   parseSentAt(headers["date"], msg.InternalDate),
	}, nil
}

// FetchFullMessage retrieves the full message and converts its payload
// into the provider-neutral part tree.
func (s *Service) FetchFullMessage(ctx context.Context, accessToken, refreshToken, id string, onTokenRefresh TokenUpdateFunc) (*mimetree.Part, error) {
	srv, err := s.newGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Gmail message: %w", err)
	}
	if msg.Payload == nil {
		return nil, nil
	}
	return convertPayload(msg.Payload), nil
}

func convertPayload(part *gmail.MessagePart) *mimetree.Part {
	node := &mimetree.Part{MimeType: part.MimeType}
	if part.Body != nil {
		node.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		node.Parts = append(node.Parts, convertPayload(child))
	}
	return node
}

func indexHeaders(payload *gmail.MessagePart) map[string]string {
	headers := make(map[string]string)
	if payload == nil {
		return headers
	}
	for _, header := range payload.Headers {
		headers[strings.ToLower(header.Name)] = header.Value
	}
	return headers
}

func parseSentAt(headerDate string, internalDate int64) time.Time {
	if headerDate != "" {
		for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, "Mon, 2 Jan 2006 15:04:05 -0700"} {
			if parsed, err := time.Parse(layout, headerDate); err == nil {
				return parsed
			}
		}
	}
	if internalDate > 0 {
		return time.UnixMilli(internalDate)
	}
	return time.Now()
}
