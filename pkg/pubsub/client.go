package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

// Client publishes to a single pre-provisioned topic.
type Client struct {
	client    *pubsub.Client
	projectID string
	topic     string
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub topic is required")
)

// NewClient creates a Pub/Sub v2 client and checks that topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, topic string, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: psClient, projectID: gcp.ProjectID, topic: strings.TrimSpace(topic)}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topic), "pubsub client initialized")
	}
	return c, nil
}

// Publisher returns the publisher handle for the configured topic.
func (c *Client) Publisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publisher(TopicResourceName(c.projectID, c.topic))
}

// Ping verifies the configured topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: TopicResourceName(c.projectID, c.topic),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", c.topic)
		}
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
	return nil
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// TopicResourceName expands a bare topic id to its full resource name.
func TopicResourceName(projectID, topic string) string {
	t := strings.TrimSpace(topic)
	if t == "" {
		return ""
	}
	if strings.HasPrefix(t, "projects/") && strings.Contains(t, "/topics/") {
		return t
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, t)
}
