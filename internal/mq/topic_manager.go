package mq

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"beacons-sync/internal/interfaces"
)

const (
	RangingTopicTemplate       = "%s/v1/beacons/+/ranging"
	MonitorEnterTopicTemplate  = "%s/v1/beacons/+/monitor/enter"
	MonitorExitTopicTemplate   = "%s/v1/beacons/+/monitor/exit"
	StatusTopicTemplate        = "%s/v1/beacons/+/status"
	RegionControlTopicTemplate = "%s/v1/beacons/+/regions"

	CommandTopicTemplate     = "%s/v1/beacons/%s/commands"
	ListsTopicTemplate       = "%s/v1/beacons/%s/lists"
	RegionEventTopicTemplate = "%s/events/regions/%s"
)

var _ interfaces.ITopicManager = (*TopicManager)(nil)

type TopicManager struct {
	baseTopic string
	patterns  map[string]*regexp.Regexp
	mu        sync.RWMutex
}

func NewTopicManager(baseTopic string) *TopicManager {
	return &TopicManager{
		baseTopic: strings.TrimSuffix(baseTopic, "/"),
		patterns:  make(map[string]*regexp.Regexp),
	}
}

func (m *TopicManager) GetRangingTopic() string {
	return fmt.Sprintf(RangingTopicTemplate, m.baseTopic)
}

func (m *TopicManager) GetMonitorEnterTopic() string {
	return fmt.Sprintf(MonitorEnterTopicTemplate, m.baseTopic)
}

func (m *TopicManager) GetMonitorExitTopic() string {
	return fmt.Sprintf(MonitorExitTopicTemplate, m.baseTopic)
}

func (m *TopicManager) GetStatusTopic() string {
	return fmt.Sprintf(StatusTopicTemplate, m.baseTopic)
}

func (m *TopicManager) GetRegionControlTopic() string {
	return fmt.Sprintf(RegionControlTopicTemplate, m.baseTopic)
}

func (m *TopicManager) GetCommandTopic(deviceID string) string {
	return fmt.Sprintf(CommandTopicTemplate, m.baseTopic, deviceID)
}

func (m *TopicManager) GetListsTopic(deviceID string) string {
	return fmt.Sprintf(ListsTopicTemplate, m.baseTopic, deviceID)
}

func (m *TopicManager) GetRegionEventTopic(event string) string {
	return fmt.Sprintf(RegionEventTopicTemplate, m.baseTopic, event)
}

func (m *TopicManager) GetBaseTopic() string {
	return m.baseTopic
}

// ExtractDeviceID returns the segment matched by the template's single wildcard.
func (m *TopicManager) ExtractDeviceID(topic, template string) (string, error) {
	regex := m.getOrCreateRegex(template)
	matches := regex.FindStringSubmatch(topic)

	if len(matches) < 2 || matches[1] == "" {
		return "", fmt.Errorf("could not extract device ID from topic '%s'", topic)
	}

	return matches[1], nil
}

func (m *TopicManager) getOrCreateRegex(template string) *regexp.Regexp {
	m.mu.RLock()
	if regex, exists := m.patterns[template]; exists {
		m.mu.RUnlock()
		return regex
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if regex, exists := m.patterns[template]; exists {
		return regex
	}

	regex := m.buildTopicRegex(template)
	m.patterns[template] = regex
	return regex
}

func (m *TopicManager) buildTopicRegex(template string) *regexp.Regexp {
	parts := strings.Split(template, "/")
	for i, part := range parts {
		switch part {
		case "%s":
			parts[i] = regexp.QuoteMeta(m.baseTopic)
		case "+":
			parts[i] = "([^/]+)"
		default:
			parts[i] = regexp.QuoteMeta(part)
		}
	}

	return regexp.MustCompile("^" + strings.Join(parts, "/") + "$")
}
