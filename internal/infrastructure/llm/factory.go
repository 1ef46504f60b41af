package llm

import (
	"fmt"
	"sync"

	"fasa-rag-api/internal/config"
)

// Factory 管理多个 Ollama 客户端实例
type Factory struct {
	config  *config.LLMConfig
	clients map[string]*OllamaClient
	mu      sync.RWMutex
}

// NewFactory 创建 LLM 工厂
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		config:  &cfg.LLM,
		clients: make(map[string]*OllamaClient),
	}
}

// Get 获取指定名称的客户端，如果未指定则返回默认客户端
func (f *Factory) Get(name string) (*OllamaClient, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	c, ok := f.clients[name]
	f.mu.RUnlock()
	if ok {
		return c, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if c, ok = f.clients[name]; ok {
		return c, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	client := NewOllamaClient(ClientConfig{
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		Temperature: providerCfg.Temperature,
		MaxTokens:   providerCfg.MaxTokens,
		Timeout:     providerCfg.Timeout,
	})
	f.clients[name] = client
	return client, nil
}

// Default 返回默认客户端
func (f *Factory) Default() (*OllamaClient, error) {
	return f.Get("")
}
