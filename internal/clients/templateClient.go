package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/database"
	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/pkg/breaker"

	"github.com/sirupsen/logrus"
)

type templateClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker[*entity.RenderedTemplate]
}

// NewTemplateClient builds the render collaborator client (no caching).
func NewTemplateClient(baseURL string, timeout time.Duration) TemplateRenderer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &templateClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker.New[*entity.RenderedTemplate](breaker.Settings{Name: "template-service"}),
	}
}

func (c *templateClient) Render(ctx context.Context, code, language string, variables map[string]interface{}) (*entity.RenderedTemplate, error) {
	tpl, err := c.breaker.Execute(func() (*entity.RenderedTemplate, error) {
		return c.render(ctx, code, language, variables)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render template %s:%s: %w", code, language, err)
	}
	return tpl, nil
}

func (c *templateClient) render(ctx context.Context, code, language string, variables map[string]interface{}) (*entity.RenderedTemplate, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"template_code": code,
		"language":      language,
		"variables":     variables,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/templates/render", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("template service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var tpl entity.RenderedTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidResponse, err)
	}
	return &tpl, nil
}

type cachedTemplateRenderer struct {
	inner TemplateRenderer
	cache database.TemplateCacheRepository
}

// NewCachedTemplateRenderer wraps a renderer with the shared rendered-template
// cache. Cache errors are logged and treated as misses so a degraded cache
// never blocks delivery.
func NewCachedTemplateRenderer(inner TemplateRenderer, cache database.TemplateCacheRepository) TemplateRenderer {
	return &cachedTemplateRenderer{inner: inner, cache: cache}
}

func (c *cachedTemplateRenderer) Render(ctx context.Context, code, language string, variables map[string]interface{}) (*entity.RenderedTemplate, error) {
	hash := HashVariables(variables)

	cached, err := c.cache.Get(ctx, code, language, hash)
	if err != nil {
		logrus.Warnf("template cache read failed for %s:%s: %v", code, language, err)
	}
	if cached != nil {
		return cached, nil
	}

	tpl, err := c.inner.Render(ctx, code, language, variables)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, code, language, hash, tpl); err != nil {
		logrus.Warnf("template cache write failed for %s:%s: %v", code, language, err)
	}
	return tpl, nil
}
