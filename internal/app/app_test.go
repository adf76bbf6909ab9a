package app

import "github.com/franckalain/leafmetric/internal/config"

func testConfig() *config.Config {
	var cfg config.Config
	cfg.API.BaseURL = "http://tea.test"
	cfg.Storage.Backend = "memory"
	return &cfg
}
