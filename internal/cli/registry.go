package cli

import (
	"fmt"

	"github.com/kubilitics/kubilitics-topology/internal/k8s"
	"github.com/kubilitics/kubilitics-topology/internal/source"
)

// registry returns builtin layouts, plus the cluster layout when a
// kubeconfig or context was given.
func (a *app) registry() (*source.Registry, error) {
	builtin, err := source.Builtin()
	if err != nil {
		return nil, err
	}
	r := source.NewRegistry(builtin...)
	if a.kubeconfig == "" && a.kubeContext == "" {
		return r, nil
	}
	client, err := k8s.NewClient(a.kubeconfig, a.kubeContext)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}
	client.SetTimeout(a.timeout)
	r.Register(source.NewKubernetesProvider(client, 0))
	return r, nil
}
