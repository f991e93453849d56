package main

import (
	"fmt"
	"log/slog"

	"lamp-prefs/internal/nvm"
	"lamp-prefs/internal/store"
)

func openMedium(cfg *Config, logger *slog.Logger) (nvm.Device, error) {
	switch cfg.Medium.Type {
	case "file":
		logger.Debug("using image file medium", "path", cfg.Medium.Path, "size", cfg.Medium.Size)
		return nvm.OpenFile(cfg.Medium.Path, cfg.Medium.Size)
	case "bolt":
		logger.Debug("using bbolt medium", "path", cfg.Medium.Path, "size", cfg.Medium.Size, "page_size", cfg.Medium.PageSize)
		return nvm.OpenBolt(cfg.Medium.Path, cfg.Medium.Size, cfg.Medium.PageSize)
	case "serial":
		timeout, err := cfg.timeout()
		if err != nil {
			return nil, err
		}
		logger.Debug("using serial EEPROM bridge", "port", cfg.Medium.Port, "baud", cfg.Medium.Baud)
		return nvm.OpenSerial(cfg.Medium.Port, cfg.Medium.Baud, timeout, logger)
	default:
		return nil, fmt.Errorf("unknown medium type: %q (supported: file, bolt, serial)", cfg.Medium.Type)
	}
}

func openStore(cfg *Config, logger *slog.Logger) (*store.Store, nvm.Device, error) {
	dev, err := openMedium(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open medium: %w", err)
	}
	interval, err := cfg.minSaveInterval()
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	st, err := store.New(dev,
		store.WithLogger(logger),
		store.WithBaseAddress(cfg.Store.Base),
		store.WithSlotStride(cfg.Store.Stride),
		store.WithMinSaveInterval(interval),
	)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return st, dev, nil
}
