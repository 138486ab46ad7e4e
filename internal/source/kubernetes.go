package source

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubilitics/kubilitics-topology/internal/k8s"
	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// ClusterLayout is the layout name of the live cluster provider.
const ClusterLayout = "cluster"

// Layer spacing for the stacked positions assigned to cluster graphs.
const (
	layerHeight = 140
	columnWidth = 180
)

var layerOrder = map[models.NodeType]int{
	models.NodeTypeExternal:  0,
	models.NodeTypeService:   1,
	models.NodeTypePod:       2,
	models.NodeTypeWorkload:  3,
	models.NodeTypeNamespace: 4,
	models.NodeTypeNode:      5,
}

// KubernetesProvider builds the canonical graph from a live cluster: hosts,
// namespaces, workloads, pods, services and ExternalName targets.
type KubernetesProvider struct {
	client   *k8s.Client
	maxNodes int
}

// NewKubernetesProvider creates a provider over client. maxNodes > 0 caps the
// graph size.
func NewKubernetesProvider(client *k8s.Client, maxNodes int) *KubernetesProvider {
	return &KubernetesProvider{client: client, maxNodes: maxNodes}
}

func (p *KubernetesProvider) Name() string { return ClusterLayout }

// snapshot is one consistent listing of the resources the graph is built from.
type snapshot struct {
	nodes        []corev1.Node
	namespaces   []corev1.Namespace
	pods         []corev1.Pod
	services     []corev1.Service
	deployments  []appsv1.Deployment
	statefulSets []appsv1.StatefulSet
	daemonSets   []appsv1.DaemonSet
}

// GenerateLayout lists cluster resources and infers edges. A namespace scope
// with a label restricts namespaced resources to that namespace.
func (p *KubernetesProvider) GenerateLayout(ctx context.Context, scope models.Scope) (models.Graph, error) {
	namespace := metav1.NamespaceAll
	if scope.Kind == models.ScopeNamespace && scope.Label != "" {
		namespace = scope.Label
	}

	snap, err := p.discover(ctx, namespace)
	if err != nil {
		return models.Graph{}, fmt.Errorf("resource discovery failed: %w", err)
	}

	b := newBuilder(p.maxNodes)
	p.addNodes(b, snap, namespace)
	p.inferEdges(b, snap)
	b.assignPositions()
	return b.graph(), nil
}

func (p *KubernetesProvider) discover(ctx context.Context, namespace string) (*snapshot, error) {
	snap := &snapshot{}
	cs := p.client.Clientset
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*corev1.NodeList, error) {
			return cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}
		snap.nodes = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*corev1.NamespaceList, error) {
			return cs.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list namespaces: %w", err)
		}
		snap.namespaces = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*corev1.PodList, error) {
			return cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list pods: %w", err)
		}
		snap.pods = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*corev1.ServiceList, error) {
			return cs.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list services: %w", err)
		}
		snap.services = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*appsv1.DeploymentList, error) {
			return cs.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list deployments: %w", err)
		}
		snap.deployments = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*appsv1.StatefulSetList, error) {
			return cs.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list statefulsets: %w", err)
		}
		snap.statefulSets = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := k8s.Call(ctx, p.client, func(ctx context.Context) (*appsv1.DaemonSetList, error) {
			return cs.AppsV1().DaemonSets(namespace).List(ctx, metav1.ListOptions{})
		})
		if err != nil {
			return fmt.Errorf("failed to list daemonsets: %w", err)
		}
		snap.daemonSets = list.Items
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// workload is the common shape of deployments, statefulsets and daemonsets.
type workload struct {
	kind      string
	namespace string
	name      string
	labels    map[string]string
	selector  map[string]string
	ready     bool
}

func (s *snapshot) workloads() []workload {
	var out []workload
	for _, d := range s.deployments {
		out = append(out, workload{"Deployment", d.Namespace, d.Name, d.Labels, matchLabels(d.Spec.Selector),
			d.Status.AvailableReplicas >= derefReplicas(d.Spec.Replicas)})
	}
	for _, st := range s.statefulSets {
		out = append(out, workload{"StatefulSet", st.Namespace, st.Name, st.Labels, matchLabels(st.Spec.Selector),
			st.Status.ReadyReplicas >= derefReplicas(st.Spec.Replicas)})
	}
	for _, ds := range s.daemonSets {
		out = append(out, workload{"DaemonSet", ds.Namespace, ds.Name, ds.Labels, matchLabels(ds.Spec.Selector),
			ds.Status.NumberReady >= ds.Status.DesiredNumberScheduled})
	}
	return out
}

func (p *KubernetesProvider) addNodes(b *builder, snap *snapshot, namespace string) {
	for _, n := range snap.nodes {
		b.addNode(models.TopologyNode{
			ID:       hostID(n.Name),
			Type:     models.NodeTypeNode,
			Label:    n.Name,
			SubLabel: n.Labels[corev1.LabelInstanceTypeStable],
			Status:   nodeStatus(n),
			Metadata: map[string]interface{}{"kubeletVersion": n.Status.NodeInfo.KubeletVersion},
		})
	}
	for _, ns := range snap.namespaces {
		if namespace != metav1.NamespaceAll && ns.Name != namespace {
			continue
		}
		b.addNode(models.TopologyNode{
			ID:     namespaceID(ns.Name),
			Type:   models.NodeTypeNamespace,
			Label:  ns.Name,
			Status: string(ns.Status.Phase),
		})
	}
	for _, w := range snap.workloads() {
		status := "Available"
		if !w.ready {
			status = "Progressing"
		}
		b.addNode(models.TopologyNode{
			ID:        workloadID(w.namespace, w.name),
			Type:      models.NodeTypeWorkload,
			Label:     w.name,
			SubLabel:  appName(w.labels, w.name),
			Namespace: w.namespace,
			Status:    status,
			Metadata:  map[string]interface{}{"kind": w.kind},
		})
	}
	for _, pod := range snap.pods {
		b.addNode(models.TopologyNode{
			ID:        podID(pod.Namespace, pod.Name),
			Type:      models.NodeTypePod,
			Label:     pod.Name,
			SubLabel:  appName(pod.Labels, ""),
			Namespace: pod.Namespace,
			Status:    string(pod.Status.Phase),
			Metadata:  map[string]interface{}{"podIP": pod.Status.PodIP, "node": pod.Spec.NodeName},
		})
	}
	for _, svc := range snap.services {
		b.addNode(models.TopologyNode{
			ID:        serviceID(svc.Namespace, svc.Name),
			Type:      models.NodeTypeService,
			Label:     svc.Name,
			SubLabel:  appName(svc.Labels, svc.Name),
			Namespace: svc.Namespace,
			Status:    string(svc.Spec.Type),
		})
		if svc.Spec.Type == corev1.ServiceTypeExternalName && svc.Spec.ExternalName != "" {
			b.addNode(models.TopologyNode{
				ID:    externalID(svc.Spec.ExternalName),
				Type:  models.NodeTypeExternal,
				Label: svc.Spec.ExternalName,
			})
		}
	}
}

func (p *KubernetesProvider) inferEdges(b *builder, snap *snapshot) {
	// namespace -> workload, and workload -> pod via selector
	owned := map[string]bool{}
	for _, w := range snap.workloads() {
		wid := workloadID(w.namespace, w.name)
		b.addEdge(namespaceID(w.namespace), wid, "contains")
		for _, pod := range snap.pods {
			if pod.Namespace == w.namespace && matchesSelector(pod.Labels, w.selector) {
				pid := podID(pod.Namespace, pod.Name)
				b.addEdge(wid, pid, "owns")
				owned[pid] = true
			}
		}
	}

	for _, pod := range snap.pods {
		pid := podID(pod.Namespace, pod.Name)
		if !owned[pid] {
			b.addEdge(namespaceID(pod.Namespace), pid, "contains")
		}
		if pod.Spec.NodeName != "" {
			b.addEdge(hostID(pod.Spec.NodeName), pid, "schedules")
		}
	}

	for _, svc := range snap.services {
		sid := serviceID(svc.Namespace, svc.Name)
		if svc.Spec.Type == corev1.ServiceTypeExternalName && svc.Spec.ExternalName != "" {
			b.addEdge(sid, externalID(svc.Spec.ExternalName), "resolves")
			continue
		}
		for _, pod := range snap.pods {
			if pod.Namespace == svc.Namespace && matchesSelector(pod.Labels, svc.Spec.Selector) {
				b.addEdge(sid, podID(pod.Namespace, pod.Name), "targets")
			}
		}
	}
}

// builder accumulates nodes and edges, skipping duplicates. Edges whose
// endpoints were never added are kept; the graph store drops them on load.
type builder struct {
	nodes     []models.TopologyNode
	edges     []models.TopologyEdge
	nodeIndex map[string]bool
	edgeIndex map[string]bool
	maxNodes  int
	truncated bool
}

func newBuilder(maxNodes int) *builder {
	return &builder{
		nodeIndex: map[string]bool{},
		edgeIndex: map[string]bool{},
		maxNodes:  maxNodes,
	}
}

func (b *builder) addNode(node models.TopologyNode) {
	if b.nodeIndex[node.ID] {
		return
	}
	if b.maxNodes > 0 && len(b.nodes) >= b.maxNodes {
		b.truncated = true
		return
	}
	b.nodes = append(b.nodes, node)
	b.nodeIndex[node.ID] = true
}

func (b *builder) addEdge(source, target, label string) {
	id := source + "->" + target
	if b.edgeIndex[id] {
		return
	}
	b.edges = append(b.edges, models.TopologyEdge{ID: id, Source: source, Target: target, Label: label})
	b.edgeIndex[id] = true
}

// assignPositions stacks nodes in horizontal layers by type.
func (b *builder) assignPositions() {
	sort.SliceStable(b.nodes, func(i, j int) bool {
		return layerOrder[b.nodes[i].Type] < layerOrder[b.nodes[j].Type]
	})
	column := map[models.NodeType]int{}
	for i := range b.nodes {
		t := b.nodes[i].Type
		b.nodes[i].Position = &models.Position{
			X: float64(column[t] * columnWidth),
			Y: float64(layerOrder[t] * layerHeight),
		}
		column[t]++
	}
}

func (b *builder) graph() models.Graph {
	g := models.Graph{Nodes: b.nodes, Edges: b.edges}
	if g.Nodes == nil {
		g.Nodes = []models.TopologyNode{}
	}
	if g.Edges == nil {
		g.Edges = []models.TopologyEdge{}
	}
	return g
}

func hostID(name string) string         { return "node-" + name }
func namespaceID(name string) string    { return "ns-" + name }
func workloadID(ns, name string) string { return "wl-" + ns + "-" + name }
func podID(ns, name string) string      { return "pod-" + ns + "-" + name }
func serviceID(ns, name string) string  { return "svc-" + ns + "-" + name }
func externalID(host string) string     { return "ext-" + host }

// appName returns the conventional app label, falling back to def.
func appName(labels map[string]string, def string) string {
	for _, key := range []string{"app.kubernetes.io/name", "app"} {
		if v := labels[key]; v != "" {
			return v
		}
	}
	return def
}

func nodeStatus(n corev1.Node) string {
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			if c.Status == corev1.ConditionTrue {
				return "Ready"
			}
			return "NotReady"
		}
	}
	return "Unknown"
}

func matchLabels(sel *metav1.LabelSelector) map[string]string {
	if sel == nil {
		return nil
	}
	return sel.MatchLabels
}

func derefReplicas(r *int32) int32 {
	if r == nil {
		return 1
	}
	return *r
}

// matchesSelector checks if labels match a selector
func matchesSelector(labels map[string]string, selector map[string]string) bool {
	if len(selector) == 0 {
		return false
	}
	for key, value := range selector {
		if labels[key] != value {
			return false
		}
	}
	return true
}
