package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubSweeper は呼び出し回数を記録するスタブ
type stubSweeper struct {
	mu    sync.Mutex
	calls int
	count int
	err   error
}

func (s *stubSweeper) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.count, s.err
}

func (s *stubSweeper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestExpirySweeper_StartAndStop(t *testing.T) {
	stub := &stubSweeper{count: 2}
	sweeper := NewExpirySweeper(stub, 10*time.Millisecond)

	go sweeper.Start(context.Background())

	// 数回のティックを待つ
	time.Sleep(55 * time.Millisecond)
	sweeper.Stop()

	calls := stub.callCount()
	assert.GreaterOrEqual(t, calls, 2)

	// 停止後は呼ばれない
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, stub.callCount())
}

func TestExpirySweeper_ContextCancel(t *testing.T) {
	stub := &stubSweeper{}
	sweeper := NewExpirySweeper(stub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("コンテキストキャンセル後もスイーパーが停止しない")
	}
}

func TestExpirySweeper_ContinuesAfterError(t *testing.T) {
	stub := &stubSweeper{err: errors.New("ストアエラー")}
	sweeper := NewExpirySweeper(stub, 10*time.Millisecond)

	go sweeper.Start(context.Background())

	// エラーが返ってもスイープは継続する
	time.Sleep(55 * time.Millisecond)
	sweeper.Stop()

	assert.GreaterOrEqual(t, stub.callCount(), 2)
}
