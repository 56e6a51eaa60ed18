package listeners

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"beacons-sync/internal/interfaces"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const notifyFunctionSQL = `
	CREATE OR REPLACE FUNCTION notify_table_change() RETURNS trigger AS $$
	DECLARE
		notification json;
		old_data json := NULL;
		new_data json := NULL;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			old_data = row_to_json(OLD);
		ELSIF TG_OP = 'INSERT' THEN
			new_data = row_to_json(NEW);
		ELSIF TG_OP = 'UPDATE' THEN
			old_data = row_to_json(OLD);
			new_data = row_to_json(NEW);
		END IF;

		notification = json_build_object(
			'operation', TG_OP,
			'table', TG_TABLE_NAME,
			'old_data', old_data,
			'new_data', new_data,
			'timestamp', now()
		);

		PERFORM pg_notify('table_events', notification::text);

		IF TG_OP = 'DELETE' THEN
			RETURN OLD;
		ELSE
			RETURN NEW;
		END IF;
	END;
	$$ LANGUAGE plpgsql;`

type ListenerManager struct {
	db        *gorm.DB
	listener  *pq.Listener
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	timeout   time.Duration
	listeners map[string][]interfaces.ITableListener
	channels  map[string]bool
	wg        sync.WaitGroup
}

func NewListenerManager(db *gorm.DB, dsn string, timeout time.Duration, logger zerolog.Logger) *ListenerManager {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error().Err(err).Msg("PostgreSQL listener error")
		}
	}

	manager := newListenerManager(db, timeout, logger)
	manager.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem)
	return manager
}

func newListenerManager(db *gorm.DB, timeout time.Duration, logger zerolog.Logger) *ListenerManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &ListenerManager{
		db:        db,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		timeout:   timeout,
		listeners: make(map[string][]interfaces.ITableListener),
		channels:  make(map[string]bool),
	}
}

func (lm *ListenerManager) RegisterListener(listener interfaces.ITableListener) error {
	tableName := listener.GetTableName()
	channelName := listener.GetChannelName()

	if !lm.channels[channelName] && lm.listener != nil {
		if err := lm.listener.Listen(channelName); err != nil {
			return fmt.Errorf("failed to listen on channel %s: %w", channelName, err)
		}
	}
	lm.channels[channelName] = true
	lm.listeners[tableName] = append(lm.listeners[tableName], listener)

	lm.logger.Info().
		Str("table", tableName).
		Str("channel", channelName).
		Msg("Registered table listener")

	return nil
}

// Initialize installs the notify function and one trigger per registered table.
func (lm *ListenerManager) Initialize() error {
	if err := lm.db.Exec(notifyFunctionSQL).Error; err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	for tableName := range lm.listeners {
		if err := lm.createTriggerForTable(tableName); err != nil {
			return fmt.Errorf("failed to create trigger for table %s: %w", tableName, err)
		}
	}

	lm.logger.Info().Msg("Listener manager initialized")
	return nil
}

func (lm *ListenerManager) createTriggerForTable(tableName string) error {
	triggerSQL := fmt.Sprintf(`
	DROP TRIGGER IF EXISTS %s_change_trigger ON %s;
	CREATE TRIGGER %s_change_trigger
		AFTER INSERT OR UPDATE OR DELETE ON %s
		FOR EACH ROW EXECUTE FUNCTION notify_table_change();`,
		tableName, tableName, tableName, tableName)

	return lm.db.Exec(triggerSQL).Error
}

func (lm *ListenerManager) Start() {
	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		lm.listenForChanges()
	}()
}

func (lm *ListenerManager) listenForChanges() {
	for {
		select {
		case notification := <-lm.listener.Notify:
			// nil after a reconnect; changes made meanwhile are lost
			if notification != nil {
				lm.handleNotification(notification.Extra)
			}
		case <-time.After(90 * time.Second):
			if err := lm.listener.Ping(); err != nil {
				lm.logger.Error().Err(err).Msg("PostgreSQL listener ping failed")
			}
		case <-lm.ctx.Done():
			lm.logger.Info().Msg("Table listener manager stopping...")
			return
		}
	}
}

// handleNotification runs the table's listeners in registration order, so
// changes to one table are seen in commit order.
func (lm *ListenerManager) handleNotification(payload string) {
	var event interfaces.TableChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		lm.logger.Error().Err(err).
			Str("payload", payload).
			Msg("Failed to parse notification")
		return
	}

	tableListeners, exists := lm.listeners[event.Table]
	if !exists {
		lm.logger.Debug().
			Str("table", event.Table).
			Msg("No listeners registered for table")
		return
	}

	for _, listener := range tableListeners {
		ctx, cancel := context.WithTimeout(lm.ctx, lm.timeout)
		if err := listener.HandleChange(ctx, &event); err != nil {
			lm.logger.Error().Err(err).
				Str("table", event.Table).
				Str("listener", fmt.Sprintf("%T", listener)).
				Msg("Error handling table change")
		}
		cancel()
	}
}

func (lm *ListenerManager) Stop() {
	if lm == nil {
		return
	}

	lm.cancel()
	lm.wg.Wait()

	if lm.listener != nil {
		if err := lm.listener.Close(); err != nil {
			lm.logger.Warn().Err(err).Msg("Failed to close PostgreSQL listener")
		}
	}

	lm.logger.Info().Msg("Table listener manager stopped")
}

var _ interfaces.IListenerManager = (*ListenerManager)(nil)
