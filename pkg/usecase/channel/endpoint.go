package channel

import (
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Endpoint returns the runtime URL to dial for agent. A deployment URL routes
// to that deployment and takes precedence; otherwise crewai agents select the
// crewai model family. Any other agent uses the runtime URL as is.
func Endpoint(runtimeURL, agent, deploymentURL string) (string, error) {
	u, err := url.Parse(runtimeURL)
	if err != nil {
		return "", goerr.Wrap(err, "invalid runtime url", goerr.V("url", runtimeURL))
	}
	if u.Scheme == "" || u.Host == "" {
		return "", goerr.New("runtime url must be absolute", goerr.V("url", runtimeURL))
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	q := u.Query()
	switch {
	case deploymentURL != "":
		q.Set("lgcDeploymentUrl", deploymentURL)
	case strings.Contains(agent, "crewai"):
		q.Set("coAgentsModel", "crewai")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
