package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"planup/internal/config"
	"planup/internal/domain"
	"planup/internal/engine"
	"planup/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookNotifier tails the activity ledger and posts matching records
// to the configured endpoints. Each endpoint keeps its own cursor so a
// slow or failing receiver never blocks the others.
type webhookNotifier struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

func startWebhookNotifier(e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	n := &webhookNotifier{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  make(map[int]int64),
	}
	go n.run()
}

func (n *webhookNotifier) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		n.dispatchAll()
		<-ticker.C
	}
}

func (n *webhookNotifier) dispatchAll() {
	for i, hook := range n.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		n.dispatch(i, hook)
	}
}

func (n *webhookNotifier) dispatch(idx int, hook config.WebhookConfig) {
	ctx := context.Background()
	cursor := n.cursorFor(idx)
	acts, err := n.engine.Repo.ListActivities(ctx, repo.ActivityFilter{SinceID: cursor, Limit: defaultWebhookBatch})
	if err != nil {
		log.Printf("webhook: fetch activities failed: %v", err)
		return
	}
	filter := newActivityFilter(hook.Events)
	for _, a := range acts {
		if !filter.match(a.Type) {
			n.setCursor(idx, a.ID)
			continue
		}
		if err := n.post(ctx, hook, a); err != nil {
			log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
			return
		}
		n.setCursor(idx, a.ID)
	}
}

// cursorFor starts new cursors at the ledger tail so a fresh endpoint
// only sees activity recorded after it was configured.
func (n *webhookNotifier) cursorFor(idx int) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cur, ok := n.cursors[idx]; ok {
		return cur
	}
	cur, err := n.engine.Repo.LastActivityID(context.Background())
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
		cur = 0
	}
	n.cursors[idx] = cur
	return cur
}

func (n *webhookNotifier) setCursor(idx int, value int64) {
	n.mu.Lock()
	n.cursors[idx] = value
	n.mu.Unlock()
}

type webhookActivity struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	ProjectID string          `json:"project_id,omitempty"`
	IssueID   string          `json:"issue_id,omitempty"`
	SprintID  string          `json:"sprint_id,omitempty"`
	ActorID   string          `json:"actor_id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (n *webhookNotifier) post(ctx context.Context, hook config.WebhookConfig, a domain.Activity) error {
	payload := json.RawMessage("{}")
	if a.Payload != "" && json.Valid([]byte(a.Payload)) {
		payload = json.RawMessage(a.Payload)
	}
	body := webhookActivity{
		ID:        a.ID,
		Type:      a.Type,
		ProjectID: a.ProjectID,
		IssueID:   a.IssueID,
		SprintID:  a.SprintID,
		ActorID:   a.ActorID,
		Timestamp: a.Timestamp,
		Payload:   payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := n.client
	if timeout != n.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Planup-Event", a.Type)
	req.Header.Set("X-Planup-Delivery", fmt.Sprintf("%d", a.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Planup-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type activityFilter struct {
	all bool
	set map[string]struct{}
}

func newActivityFilter(events []string) activityFilter {
	if len(events) == 0 {
		return activityFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return activityFilter{all: true}
	}
	return activityFilter{set: set}
}

func (f activityFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
