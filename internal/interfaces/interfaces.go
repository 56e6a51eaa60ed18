package interfaces

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type IMqPublisher interface {
	PublishJSON(topic string, data interface{}, retained bool) error
	ClearRetained(topic string) error
}

type IMqClient interface {
	IMqPublisher
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Disconnect(ctx context.Context)
	Connect(ctx context.Context) error
}

type ITopicManager interface {
	GetRangingTopic() string
	GetMonitorEnterTopic() string
	GetMonitorExitTopic() string
	GetStatusTopic() string
	GetRegionControlTopic() string
	GetCommandTopic(deviceID string) string
	GetListsTopic(deviceID string) string
	GetRegionEventTopic(event string) string
	GetBaseTopic() string
	ExtractDeviceID(topic, template string) (string, error)
}

type ITableListener interface {
	GetTableName() string
	HandleChange(ctx context.Context, event *TableChangeEvent) error
	GetChannelName() string
}

type IListenerManager interface {
	RegisterListener(listener ITableListener) error
	Initialize() error
	Start()
	Stop()
}

type OperationType string

const (
	InsertOperation OperationType = "INSERT"
	UpdateOperation OperationType = "UPDATE"
	DeleteOperation OperationType = "DELETE"
)

type TableChangeEvent struct {
	Operation OperationType          `json:"operation"`
	Table     string                 `json:"table"`
	OldData   map[string]interface{} `json:"old_data,omitempty"`
	NewData   map[string]interface{} `json:"new_data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (t *TableChangeEvent) GetData() ([]byte, []byte, error) {
	newData, err := json.Marshal(t.NewData)
	if err != nil {
		return nil, nil, err
	}

	oldData, err := json.Marshal(t.OldData)
	if err != nil {
		return nil, nil, err
	}

	return newData, oldData, nil
}
