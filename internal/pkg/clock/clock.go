package clock

import (
	"sync"
	"time"
)

// Clock は時刻の供給源を抽象化するインターフェース
// 期限切れ判定はすべてこのインターフェース経由で時刻を読むため、
// テストでは時間を自由に進められる
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now を返すクロックを作成する
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Manual はテスト用に手動で時間を進められるクロック
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual は指定時刻で固定された Manual クロックを作成する
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance は現在時刻を d だけ進める
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set は現在時刻を t に設定する
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
