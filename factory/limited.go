// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package factory

import (
	"context"

	"github.com/youseeus/mongodb-async-driver/internal"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
)

// Limited bounds how many connections can be open at once through
// delegate, blocking Connect until a permit frees up. A permit is
// released automatically once the returned Connection's socket closes.
func Limited(max uint64, delegate Factory) Factory {
	permits := internal.NewSemaphore(max)
	return FactoryFunc(func(ctx context.Context, server *model.Server) (*socket.Connection, error) {
		if err := permits.Wait(ctx); err != nil {
			return nil, err
		}

		conn, err := delegate.Connect(ctx, server)
		if err != nil {
			permits.Release()
			return nil, err
		}

		go func() {
			<-conn.Done()
			permits.Release()
		}()

		return conn, nil
	})
}
