package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client wraps the Pub/Sub v2 client with the topic and subscription the
// marketplace uses. Publishers are cached per topic and stopped on Close.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient dials Pub/Sub and verifies the notification topic and
// subscription exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  projectID,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"topic":        cfg.NotificationTopic,
			"subscription": cfg.NotificationSubscription,
		})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping confirms the configured topic and subscription are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if topic := c.resourceName(kindTopic, c.cfg.NotificationTopic); topic != "" {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		if err := lookupError("topic", c.cfg.NotificationTopic, err); err != nil {
			return err
		}
	}
	sub := c.resourceName(kindSubscription, c.cfg.NotificationSubscription)
	if sub == "" {
		return errors.New("pubsub subscription name is required")
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
	return lookupError("subscription", c.cfg.NotificationSubscription, err)
}

func lookupError(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Subscription returns a subscriber for a subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(kindSubscription, name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// NotificationSubscription returns the subscriber the notification worker pulls from.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns the cached publisher for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(kindTopic, name)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p
	}
	if c.publishers == nil {
		c.publishers = map[string]*pubsub.Publisher{}
	}
	p := c.client.Publisher(fullName)
	c.publishers[fullName] = p
	return p
}

// Close flushes cached publishers and releases the underlying client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// resourceName expands an ID into projects/<project>/<kind>/<id>. Names
// already carrying the projects/ prefix pass through untouched.
func (c *Client) resourceName(kind, name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n)
}
