package channel_test

import (
	"testing"

	"github.com/m-mizutani/drivelens/pkg/usecase/channel"
	"github.com/m-mizutani/gt"
)

func TestEndpoint(t *testing.T) {
	testCases := map[string]struct {
		runtime    string
		agent      string
		deployment string
		want       string
		wantErr    bool
	}{
		"plain agent": {
			runtime: "http://localhost:3000/api/copilotkit",
			agent:   "research_agent",
			want:    "ws://localhost:3000/api/copilotkit",
		},
		"tls runtime": {
			runtime: "https://cars.example.com/api/copilotkit",
			agent:   "research_agent",
			want:    "wss://cars.example.com/api/copilotkit",
		},
		"crewai agent": {
			runtime: "http://localhost:3000/api/copilotkit",
			agent:   "research_agent_crewai",
			want:    "ws://localhost:3000/api/copilotkit?coAgentsModel=crewai",
		},
		"deployment wins over crewai": {
			runtime:    "http://localhost:3000/api/copilotkit",
			agent:      "research_agent_crewai",
			deployment: "https://lgc.example.com",
			want:       "ws://localhost:3000/api/copilotkit?lgcDeploymentUrl=https%3A%2F%2Flgc.example.com",
		},
		"websocket scheme kept": {
			runtime: "wss://cars.example.com/agent",
			agent:   "research_agent",
			want:    "wss://cars.example.com/agent",
		},
		"relative url": {
			runtime: "/api/copilotkit",
			agent:   "research_agent",
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := channel.Endpoint(tc.runtime, tc.agent, tc.deployment)
			if tc.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, got, tc.want)
		})
	}
}
