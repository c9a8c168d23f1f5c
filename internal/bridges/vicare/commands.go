package vicare

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/heating"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/mqtt"
)

// Command sources.
const (
	SourceMQTT    = "mqtt"
	SourceAPI     = "api"
	SourceService = "service"
)

// handleMessage routes an inbound MQTT message by topic category.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	category, rest, ok := b.topics.Parse(topic)
	if !ok {
		b.logger.Debug("ignoring message on foreign topic", "topic", topic)
		return nil
	}
	switch category {
	case mqtt.CategoryCommand:
		return b.handleCommand(rest, payload)
	case mqtt.CategoryService:
		return b.handleService(rest, payload)
	default:
		return nil
	}
}

func (b *Bridge) handleCommand(entityID string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		ack := NewAckError(cmd, entityID, fmt.Errorf("%w: %v", entity.ErrInvalidParameters, err))
		b.publishAck(ack)
		return fmt.Errorf("decoding command for %s: %w", entityID, err)
	}
	if cmd.Source == "" {
		cmd.Source = SourceMQTT
	}
	b.Dispatch(b.ctx, entityID, cmd)
	return nil
}

func (b *Bridge) handleService(name string, payload []byte) error {
	var msg ServiceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		ack := NewAckError(CommandMessage{ID: msg.ID, Command: name}, msg.EntityID,
			fmt.Errorf("%w: %v", entity.ErrInvalidParameters, err))
		b.publishAck(ack)
		return fmt.Errorf("decoding service %s: %w", name, err)
	}
	b.CallService(b.ctx, name, msg)
	return nil
}

// Dispatch executes cmd on an entity, publishes the acknowledgment and,
// on success, the entity's new state. The returned ack is also what was
// published.
func (b *Bridge) Dispatch(ctx context.Context, entityID string, cmd CommandMessage) AckMessage {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = b.now().UTC()
	}

	err := b.execute(ctx, entityID, cmd)
	ack := NewAckMessage(cmd, entityID)
	if err != nil {
		ack = NewAckError(cmd, entityID, err)
		b.commandsFailed.Add(1)
		b.logger.Warn("command failed",
			"entity_id", entityID,
			"command", cmd.Command,
			"command_id", cmd.ID,
			"source", cmd.Source,
			"code", ack.Error.Code,
			"error", err)
	} else {
		b.logger.Info("command accepted",
			"entity_id", entityID,
			"command", cmd.Command,
			"command_id", cmd.ID,
			"source", cmd.Source)
	}
	b.commands.Add(1)
	b.metrics.observeCommand(cmd.Command, ack.Status)
	b.publishAck(ack)
	return ack
}

// CallService runs a climate service. It resolves to the matching climate
// command on the target entity.
func (b *Bridge) CallService(ctx context.Context, name string, msg ServiceMessage) AckMessage {
	cmd := CommandMessage{
		ID:         msg.ID,
		Command:    name,
		Parameters: msg.Parameters,
		Source:     SourceService,
	}
	switch name {
	case ServiceSetVicareMode:
		cmd.Command = heating.CommandSetVicareMode
	case ServiceSetHeatingCurve:
		cmd.Command = heating.CommandSetHeatingCurve
	default:
		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}
		ack := NewAckError(cmd, msg.EntityID, fmt.Errorf("%w: %s", ErrUnknownService, name))
		b.publishAck(ack)
		return ack
	}
	return b.Dispatch(ctx, msg.EntityID, cmd)
}

func (b *Bridge) execute(ctx context.Context, entityID string, cmd CommandMessage) error {
	e, err := b.Entity(entityID)
	if err != nil {
		return err
	}
	commander, ok := e.(entity.Commander)
	if !ok {
		return fmt.Errorf("%w: %s", ErrReadOnly, entityID)
	}

	// Commands are cancelled with the bridge as well as the caller.
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	if err := commander.Execute(ctx, entity.Command{Name: cmd.Command, Params: cmd.Parameters}); err != nil {
		return err
	}
	if e.Available() {
		b.publishState(e)
		b.persistState(ctx, e)
	}
	return nil
}

func (b *Bridge) publishAck(ack AckMessage) {
	if ack.EntityID == "" {
		b.logger.Debug("dropping ack without entity", "command_id", ack.CommandID)
		return
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(ack.EntityID), payload, 1, false); err != nil {
		b.logger.Warn("failed to publish ack", "entity_id", ack.EntityID, "error", err)
	}
}
