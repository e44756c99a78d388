package job

import (
	"io"
	"net/http"

	"fieldscan/scanner-relay/log"
)

type httpPoster interface {
	Post(url, contentType string, body io.Reader) (resp *http.Response, err error)
}

// SidecarQuitter asks the service mesh sidecar to exit once a one-shot
// job is done, so the pod does not hang around waiting on the proxy
// container.
type SidecarQuitter struct {
	QuitSidecar     bool
	Client          httpPoster
	sidecarProxyUrl string
}

func (s *SidecarQuitter) EnableSideCarProxyQuit(proxyUrl string) {
	s.QuitSidecar = true
	s.sidecarProxyUrl = proxyUrl
}

func (s *SidecarQuitter) Quit() error {
	_, err := s.Client.Post(s.sidecarProxyUrl+"/quitquitquit", "text/plain", nil)
	if err != nil {
		log.Logger.WithError(err).Error("unexpected error received from sidecar proxy /quitquitquit")
		return err
	}

	return nil
}
