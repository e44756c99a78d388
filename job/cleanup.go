package job

import (
	"net/http"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"
)

type DeadLetterPurger interface {
	PurgeDeadLetters(olderThan time.Time) (int64, error)
}

type cleanup struct {
	purger    DeadLetterPurger
	retention time.Duration
	SidecarQuitter
}

// RunCleanup removes dead letters that outlived the configured retention
// window. It is meant to run as a scheduled one-shot alongside the relay.
func RunCleanup(purger DeadLetterPurger, cfg *config.Config) int {
	j := newCleanupWithDefaultClient(purger, cfg.GetDeadLetterRetention())
	if cfg.SidecarProxyUrl != "" {
		j.EnableSideCarProxyQuit(cfg.SidecarProxyUrl)
	}

	_, err := j.Execute()
	if err != nil {
		return 1
	}

	return 0
}

func newCleanupWithDefaultClient(purger DeadLetterPurger, retention time.Duration) *cleanup {
	return newCleanup(purger, retention, http.DefaultClient)
}

func newCleanup(purger DeadLetterPurger, retention time.Duration, cl httpPoster) *cleanup {
	return &cleanup{
		purger:    purger,
		retention: retention,
		SidecarQuitter: SidecarQuitter{
			Client: cl,
		},
	}
}

func (c *cleanup) Execute() (int64, error) {
	rows, err := c.purger.PurgeDeadLetters(time.Now().UTC().Add(-c.retention))
	if err != nil {
		log.Logger.WithError(err).Error("an error occurred whilst purging expired dead letters")
		return 0, err
	}

	log.Logger.Infof("purged %d expired dead letters", rows)

	if c.QuitSidecar {
		err = c.Quit()
		if err != nil {
			return 0, err
		}
	}

	return rows, nil
}
