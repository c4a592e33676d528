package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// SiteLabel marks ConfigMaps that describe a solar site.
	SiteLabel = "gridwatch.io/site"

	keySite     = "site"
	keyCapacity = "capacity_kw"
)

// Registry is where site capacities end up.
type Registry interface {
	UpsertNamespace(ctx context.Context, name string) (int64, error)
	SetSiteCapacity(ctx context.Context, name string, capacityKW float64, nsID *int64) (int64, error)
}

type SiteSyncer struct {
	client    kubernetes.Interface
	registry  Registry
	namespace string
	factory   informers.SharedInformerFactory

	mu sync.RWMutex
	// Namespace name -> ID
	namespaces map[string]int64
	// ConfigMap namespace/name -> site name, so deletes and renames can reset
	// the right row.
	sites map[string]string
}

// BuildConfig resolves the cluster config: in-cluster when running in a pod,
// otherwise the given path, then KUBECONFIG, then ~/.kube/config.
func BuildConfig(kubeConfigPath string) (*rest.Config, error) {
	if kubeConfigPath == "" && os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return rest.InClusterConfig()
	}
	if kubeConfigPath == "" {
		kubeConfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeConfigPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			kubeConfigPath = filepath.Join(home, ".kube", "config")
		}
	}
	config, err := clientcmd.BuildConfigFromFlags("", kubeConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kube config: %w", err)
	}
	return config, nil
}

func NewSiteSyncer(kubeConfigPath, namespace string, registry Registry) (*SiteSyncer, error) {
	config, err := BuildConfig(kubeConfigPath)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return NewSiteSyncerForClient(clientset, namespace, registry), nil
}

// NewSiteSyncerForClient watches ConfigMaps through an existing client. An
// empty namespace watches all of them.
func NewSiteSyncerForClient(client kubernetes.Interface, namespace string, registry Registry) *SiteSyncer {
	return &SiteSyncer{
		client:     client,
		registry:   registry,
		namespace:  namespace,
		namespaces: make(map[string]int64),
		sites:      make(map[string]string),
	}
}

// Start runs the informer until ctx is done and blocks until the first
// list has been processed.
func (s *SiteSyncer) Start(ctx context.Context) {
	opts := []informers.SharedInformerOption{
		informers.WithTweakListOptions(func(o *metav1.ListOptions) {
			o.LabelSelector = SiteLabel
		}),
	}
	if s.namespace != "" {
		opts = append(opts, informers.WithNamespace(s.namespace))
	}
	s.factory = informers.NewSharedInformerFactoryWithOptions(s.client, 10*time.Minute, opts...)

	cmInformer := s.factory.Core().V1().ConfigMaps().Informer()
	cmInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { s.syncObject(ctx, obj) },
		UpdateFunc: func(old, new interface{}) { s.syncObject(ctx, new) },
		DeleteFunc: func(obj interface{}) { s.deleteObject(ctx, obj) },
	})

	s.factory.Start(ctx.Done())
	s.factory.WaitForCacheSync(ctx.Done())

	log.Println("Site Syncer started and synced")
}

// SiteConfig is the site description carried by a ConfigMap.
type SiteConfig struct {
	Site       string
	CapacityKW float64
}

// ParseSiteConfigMap reads the site name (defaulting to the ConfigMap name)
// and its positive capacity in kW.
func ParseSiteConfigMap(cm *corev1.ConfigMap) (SiteConfig, error) {
	cfg := SiteConfig{Site: strings.TrimSpace(cm.Data[keySite])}
	if cfg.Site == "" {
		cfg.Site = cm.Name
	}
	raw, ok := cm.Data[keyCapacity]
	if !ok {
		return cfg, fmt.Errorf("configmap %s/%s: missing %s", cm.Namespace, cm.Name, keyCapacity)
	}
	kw, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return cfg, fmt.Errorf("configmap %s/%s: %s: %w", cm.Namespace, cm.Name, keyCapacity, err)
	}
	if kw <= 0 {
		return cfg, fmt.Errorf("configmap %s/%s: %s must be positive, got %v", cm.Namespace, cm.Name, keyCapacity, kw)
	}
	cfg.CapacityKW = kw
	return cfg, nil
}

func (s *SiteSyncer) syncObject(ctx context.Context, obj interface{}) {
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		return
	}
	cfg, err := ParseSiteConfigMap(cm)
	if err != nil {
		log.Printf("Skipping site configmap: %v", err)
		return
	}

	key := cm.Namespace + "/" + cm.Name
	s.mu.RLock()
	previous, seen := s.sites[key]
	s.mu.RUnlock()
	if seen && previous != cfg.Site {
		s.resetSite(ctx, previous)
	}

	nsID := s.getNamespaceID(ctx, cm.Namespace)
	var nsRef *int64
	if nsID != 0 {
		nsRef = &nsID
	}
	if _, err := s.registry.SetSiteCapacity(ctx, cfg.Site, cfg.CapacityKW, nsRef); err != nil {
		log.Printf("Failed to sync site %s: %v", cfg.Site, err)
		return
	}

	s.mu.Lock()
	s.sites[key] = cfg.Site
	s.mu.Unlock()
}

func (s *SiteSyncer) deleteObject(ctx context.Context, obj interface{}) {
	if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		obj = tomb.Obj
	}
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		return
	}

	key := cm.Namespace + "/" + cm.Name
	s.mu.Lock()
	site, seen := s.sites[key]
	delete(s.sites, key)
	s.mu.Unlock()
	if !seen {
		return
	}
	s.resetSite(ctx, site)
}

func (s *SiteSyncer) resetSite(ctx context.Context, site string) {
	if _, err := s.registry.SetSiteCapacity(ctx, site, 0, nil); err != nil {
		log.Printf("Failed to reset capacity for site %s: %v", site, err)
	}
}

func (s *SiteSyncer) getNamespaceID(ctx context.Context, name string) int64 {
	s.mu.RLock()
	id, ok := s.namespaces[name]
	s.mu.RUnlock()
	if ok {
		return id
	}

	id, err := s.registry.UpsertNamespace(ctx, name)
	if err != nil {
		log.Printf("Failed to upsert namespace %s: %v", name, err)
		return 0
	}

	s.mu.Lock()
	s.namespaces[name] = id
	s.mu.Unlock()
	return id
}
