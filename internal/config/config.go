package config

import (
	"fmt"
	"os"
)

const (
	httpAddrEnv    = "HTTP_ADDR"
	storeURLEnv    = "STORE_URL"
	storeRepoEnv   = "STORE_REPO"
	storeBranchEnv = "STORE_BRANCH"
	storeTokenEnv  = "STORE_TOKEN"
	webhookURLEnv  = "WEBHOOK_URL"
)

type Config struct {
	HTTPAddr    string
	StoreURL    string
	StoreRepo   string
	StoreBranch string
	StoreToken  string
	WebhookURL  string
}

func NewConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:    os.Getenv(httpAddrEnv),
		StoreURL:    os.Getenv(storeURLEnv),
		StoreRepo:   os.Getenv(storeRepoEnv),
		StoreBranch: os.Getenv(storeBranchEnv),
		StoreToken:  os.Getenv(storeTokenEnv),
		WebhookURL:  os.Getenv(webhookURLEnv),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.StoreBranch == "" {
		cfg.StoreBranch = "main"
	}
	if cfg.StoreURL == "" {
		return cfg, fmt.Errorf("env %s is empty", storeURLEnv)
	}
	if cfg.StoreRepo == "" {
		return cfg, fmt.Errorf("env %s is empty", storeRepoEnv)
	}

	return cfg, nil
}
