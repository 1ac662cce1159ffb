package mqtt

import (
	"errors"
	"strings"
)

const (
	defaultTopicPrefix string = "redhat"
	consoleTopicRoot   string = "console"
	notificationsLeaf  string = "notifications"
	highlightsLeaf     string = "highlights"
)

var ErrInvalidTopicChannel = errors.New("channel cannot be used as an MQTT topic")

type TopicBuilder struct {
	prefix string
}

func NewTopicBuilder(prefix string) *TopicBuilder {
	topicBuilder := &TopicBuilder{prefix: defaultTopicPrefix}
	if prefix != "" {
		topicBuilder.prefix = prefix
	}

	return topicBuilder
}

// BuildNotificationTopic returns <prefix>/console/<resource>/<id>/notifications for a
// channel key of the form <resource>/<id>.
func (tb *TopicBuilder) BuildNotificationTopic(channel string) (string, error) {
	return tb.build(channel, notificationsLeaf)
}

func (tb *TopicBuilder) BuildHighlightTopic(channel string) (string, error) {
	return tb.build(channel, highlightsLeaf)
}

func (tb *TopicBuilder) build(channel string, leaf string) (string, error) {
	items := strings.Split(channel, "/")
	if len(items) != 2 {
		return "", ErrInvalidTopicChannel
	}

	for _, item := range items {
		if item == "" || strings.ContainsAny(item, "+#") {
			return "", ErrInvalidTopicChannel
		}
	}

	return strings.Join([]string{tb.prefix, consoleTopicRoot, items[0], items[1], leaf}, "/"), nil
}
