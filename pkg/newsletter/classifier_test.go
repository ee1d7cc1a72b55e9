package newsletter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	query := BuildQuery(90)
	assert.Equal(t, "newer_than:90d has:link category:updates -is:chat (from:substack.com OR from:substackmail.com OR from:beehiiv.com OR from:buttondown.email)", query)
}

func TestBuildQuery_ClampsWindow(t *testing.T) {
	assert.Contains(t, BuildQuery(0), "newer_than:1d")
	assert.Contains(t, BuildQuery(-5), "newer_than:1d")
	assert.Contains(t, BuildQuery(1000), "newer_than:365d")
}

func TestClassifyFromMetadata(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		want Platform
	}{
		{
			"substackmail sender",
			Metadata{From: "Lenny <hello@mail.substackmail.com>"},
			PlatformSubstack,
		},
		{
			"substack list id",
			Metadata{From: "Someone <x@example.com>", ListID: "<digest.lenny.substack.com>"},
			PlatformSubstack,
		},
		{
			"beehiiv sender",
			Metadata{From: "Milk Road <crew@milkroad.beehiiv.com>"},
			PlatformBeehiiv,
		},
		{
			"buttondown sender",
			Metadata{From: "writer@buttondown.email"},
			PlatformButtondown,
		},
		{
			"subject keyword",
			Metadata{From: "x@example.com", Subject: "via beehiiv.com weekly"},
			PlatformBeehiiv,
		},
		{
			"no signals",
			Metadata{From: "Friend <friend@example.com>", Subject: "lunch?"},
			PlatformUnknown,
		},
		{
			"rule order prefers substack",
			Metadata{From: "x@substack.com", Subject: "also mentions beehiiv.com"},
			PlatformSubstack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFromMetadata(tt.meta))
		})
	}
}

func TestRefineWithBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		initial Platform
		want    Platform
	}{
		{"upgrades unknown on footer", "… Powered by Substack …", PlatformUnknown, PlatformSubstack},
		{"beehiiv footer", "view newsletter in your browser", PlatformUnknown, PlatformBeehiiv},
		{"never downgrades resolved platform", "Buttondown unsubscribe from this list", PlatformSubstack, PlatformSubstack},
		{"empty body keeps initial", "", PlatformUnknown, PlatformUnknown},
		{"no footer match", "just a regular email", PlatformUnknown, PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RefineWithBody(tt.body, tt.initial))
		})
	}
}
