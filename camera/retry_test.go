package camera

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

var errNotYet = errors.New("not yet")

func TestRetryPolicyFirstTry(t *testing.T) {
	mock := clock.NewMock()
	start := mock.Now()
	attempts := 0
	err := RetryPolicy{MaxAttempts: 6, Backoff: 3 * time.Second}.Do(
		context.Background(), mock,
		func(ctx context.Context) error {
			attempts++
			return nil
		})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, attempts, test.ShouldEqual, 1)
	// no backoff was consumed
	test.That(t, mock.Now().Sub(start), test.ShouldEqual, time.Duration(0))
}

func TestRetryPolicyExhausted(t *testing.T) {
	mock := clock.NewMock()
	policy := RetryPolicy{MaxAttempts: 3, Backoff: 3 * time.Second}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(context.Background(), mock, func(ctx context.Context) error {
			attempts++
			return errNotYet
		})
	}()

	for {
		select {
		case err := <-done:
			test.That(t, err, test.ShouldBeError, errNotYet)
			test.That(t, attempts, test.ShouldEqual, 3)
			return
		default:
			mock.Add(policy.Backoff)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRetryPolicyEventualSuccess(t *testing.T) {
	mock := clock.NewMock()
	policy := RetryPolicy{MaxAttempts: 6, Backoff: 3 * time.Second}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(context.Background(), mock, func(ctx context.Context) error {
			attempts++
			if attempts < 4 {
				return errNotYet
			}
			return nil
		})
	}()

	for {
		select {
		case err := <-done:
			test.That(t, err, test.ShouldBeNil)
			test.That(t, attempts, test.ShouldEqual, 4)
			return
		default:
			mock.Add(policy.Backoff)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRetryPolicyContextCancel(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := RetryPolicy{MaxAttempts: 6, Backoff: 3 * time.Second}.Do(ctx, mock, func(ctx context.Context) error {
		attempts++
		cancel()
		return errNotYet
	})
	test.That(t, err, test.ShouldBeError, context.Canceled)
	// the cancellation short-circuits the backoff wait, not the attempt
	test.That(t, attempts, test.ShouldEqual, 1)
}

func TestRetryPolicyZeroValuesGetDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	test.That(t, p.MaxAttempts, test.ShouldEqual, DefaultRetryAttempts)
	test.That(t, p.Backoff, test.ShouldEqual, DefaultRetryBackoff)
}
