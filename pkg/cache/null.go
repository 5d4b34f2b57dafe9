package cache

import (
	"context"
	"time"
)

// Null never stores anything; every Get is a miss.
type Null struct{}

func NewNull() Null { return Null{} }

func (Null) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Null) Set(context.Context, string, any, time.Duration) error { return nil }
func (Null) Delete(context.Context, ...string) error { return nil }
func (Null) DeletePrefix(context.Context, string) error { return nil }
