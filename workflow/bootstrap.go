package workflow

import (
	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewFromSettings wires the orchestrator and its MySQL store from the
// pipeline settings. The Redis lock is used when Redis is connected,
// otherwise locks are local to the process.
func NewFromSettings(db *gorm.DB, settings config.PipelineSettings, logger *logrus.Logger) (*Orchestrator, *models.GormStore, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	registry, err := dqcheck.LoadRulesFile(settings.RulesFile)
	if err != nil {
		return nil, nil, &ConfigError{Op: "load rules", Err: err}
	}
	client, err := reasoner.NewClient(settings.ReasonerURL, settings.ReasonerTimeout, logger)
	if err != nil {
		return nil, nil, &ConfigError{Op: "reasoner client", Err: err}
	}
	store := models.NewGormStore(db, registry, settings.DescriptionTTL, logger)

	var locker EntityLocker
	if config.RedisConfigured() {
		locker = NewRedisLocker(config.GetRedisLock(), settings.LockTTL, settings.LockWait, logger)
	} else {
		logger.Warn("redis not configured, entity locks are process-local")
		locker = NewLocalLocker(settings.LockWait)
	}

	o := NewOrchestrator(store, client, registry, logger,
		WithLocker(locker),
		WithReasonerTimeout(settings.ReasonerTimeout),
	)
	return o, store, nil
}
