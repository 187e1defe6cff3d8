package main

import (
	"context"

	"gorm.io/gorm"
)

type sqlPinger struct {
	db *gorm.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
