package dqapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
	"bitbucket.org/mmdatafocus/dq_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Publisher queues an entity run.
type Publisher interface {
	PublishEntity(ctx context.Context, msg EntityMessage) (string, error)
}

type PubSubPublisher struct {
	Topic       string
	CreateTopic bool
}

func (p PubSubPublisher) PublishEntity(ctx context.Context, msg EntityMessage) (string, error) {
	if msg.EntityID <= 0 {
		return "", errors.New("entity id must be positive")
	}
	if p.CreateTopic {
		client, err := config.GetClient(ctx)
		if err != nil {
			return "", err
		}
		if _, err := config.CreateTopicIfNotExists(ctx, client, p.Topic); err != nil {
			return "", err
		}
	}
	return config.PublishJSON(ctx, p.Topic, msg, map[string]string{
		"entity_id": strconv.FormatInt(msg.EntityID, 10),
	})
}

// PubSubPushHandler runs the pipeline for pushed entity messages. Malformed
// messages and configuration errors are acked with 204 since they would fail
// the same way again. A busy entity or a failed reset answers 503 so the
// message is redelivered.
func PubSubPushHandler(proc Processor, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithField("field", "PubSubPushHandler")

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			log.WithError(err).Warn("invalid push envelope")
			c.Status(204)
			return
		}

		var msg EntityMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil || msg.EntityID <= 0 {
			log.WithField("message_id", envelope.Message.ID).Warn("invalid entity message")
			c.Status(204)
			return
		}

		ctx := utils.SetTriggerInContext(c.Request.Context(), utils.TriggerPubSub)
		cid := msg.CorrelationId
		if cid == "" {
			cid = envelope.Message.ID
		}
		if cid != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, cid)
		}

		if _, err := proc.ProcessEntity(ctx, msg.EntityID); err != nil {
			config.LogError(logger, "dqapi", "PubSubPushHandler", "process entity", msg.EntityID, err)
			var cfgErr *workflow.ConfigError
			if !errors.As(err, &cfgErr) {
				c.Status(http.StatusServiceUnavailable)
				return
			}
		}
		c.Status(204)
	}
}
