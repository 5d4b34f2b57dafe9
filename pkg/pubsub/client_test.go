package pubsub

import (
	"testing"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"proj", "orders", "projects/proj/topics/orders"},
		{"proj", " orders ", "projects/proj/topics/orders"},
		{"proj", "projects/other/topics/orders", "projects/other/topics/orders"},
		{"", "orders", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q,%q)=%q want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{OrdersTopic: "orders", BillingTopic: "  ", NotificationTopic: "notify"})
	if len(names) != 2 || names[0] != "orders" || names[1] != "notify" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestClientOptions(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: "{}"}, config.PubSubConfig{EmulatorHost: "localhost:8085"}); len(opts) != 0 {
		t.Fatalf("emulator should not receive credentials")
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: "{}"}, config.PubSubConfig{}); len(opts) != 1 {
		t.Fatalf("expected inline credentials option")
	}
	if opts := clientOptions(config.GCPConfig{}, config.PubSubConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials")
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(t.Context(), config.GCPConfig{}, config.PubSubConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNewClientRequiresTopics(t *testing.T) {
	_, err := NewClient(t.Context(), config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{OrdersTopic: " "}, nil)
	if err != errNoTopics {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsInert(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil {
		t.Fatal("nil client should not hand out publishers")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(t.Context()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
}
