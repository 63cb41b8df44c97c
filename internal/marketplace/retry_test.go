package marketplace

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClient returns the queued errors one by one, then succeeds.
type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) Marketplace() Marketplace { return Ozon }

func (s *scriptedClient) next() error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedClient) ListPromotions(ctx context.Context, creds Credentials) ([]Promotion, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return []Promotion{{ID: "1"}}, nil
}

func (s *scriptedClient) ListProducts(ctx context.Context, creds Credentials, promotionID string, offset, limit int) ([]Product, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *scriptedClient) Withdraw(ctx context.Context, creds Credentials, productID string) error {
	return s.next()
}

func transientErr() error {
	return &Error{Market: Ozon, Op: "test", Kind: KindTransient, Err: errors.New("boom")}
}

func authErr() error {
	return &Error{Market: Ozon, Op: "test", Kind: KindAuth, Status: 401}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	inner := &scriptedClient{errs: []error{transientErr(), transientErr()}}
	c := WithRetry(inner, RetryOptions{Attempts: 3, Backoff: time.Millisecond}, noopLogger())

	promotions, err := c.ListPromotions(context.Background(), Credentials{})
	if err != nil {
		t.Fatalf("瞬时错误重试后应成功: %v", err)
	}
	if len(promotions) != 1 {
		t.Fatalf("重试成功后应返回结果: %#v", promotions)
	}
	if inner.calls != 3 {
		t.Fatalf("期望 3 次调用, 实际 %d", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &scriptedClient{errs: []error{transientErr(), transientErr(), transientErr()}}
	c := WithRetry(inner, RetryOptions{Attempts: 3, Backoff: time.Millisecond}, noopLogger())

	if err := c.Withdraw(context.Background(), Credentials{}, "1"); !IsTransient(err) {
		t.Fatalf("重试耗尽后应返回最后一次瞬时错误: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("期望 3 次调用, 实际 %d", inner.calls)
	}
}

func TestRetryDoesNotRetryAuthErrors(t *testing.T) {
	inner := &scriptedClient{errs: []error{authErr()}}
	c := WithRetry(inner, RetryOptions{Attempts: 3, Backoff: time.Millisecond}, noopLogger())

	if _, err := c.ListProducts(context.Background(), Credentials{}, "1", 0, 10); !IsAuth(err) {
		t.Fatalf("认证错误不应重试: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("认证错误应只调用一次, 实际 %d", inner.calls)
	}
}

func TestRetrySingleAttemptReturnsOriginalClient(t *testing.T) {
	inner := &scriptedClient{}
	if c := WithRetry(inner, RetryOptions{Attempts: 1}, noopLogger()); c != Client(inner) {
		t.Fatal("Attempts<=1 时应返回原客户端")
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	inner := &scriptedClient{errs: []error{transientErr(), transientErr(), transientErr()}}
	c := WithRetry(inner, RetryOptions{Attempts: 3, Backoff: time.Minute}, noopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := c.Withdraw(ctx, Credentials{}, "1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("取消上下文应终止退避等待: %v", err)
	}
}
