package notify_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/drivelens/pkg/usecase/notify"
	"github.com/m-mizutani/drivelens/pkg/utils/clock"
	"github.com/m-mizutani/gt"
)

func newToast(t *testing.T, opts ...notify.Option) (*notify.Toast, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]notify.Option{notify.WithClock(fake)}, opts...)
	return notify.New(opts...), fake
}

func TestToastAutoHide(t *testing.T) {
	var hidden []string
	toast, fake := newToast(t, notify.WithOnHide(func(txHash string) {
		hidden = append(hidden, txHash)
	}))

	gt.False(t, toast.Visible())
	gt.Equal(t, toast.Link(), "")

	toast.Show("0xdeadbeef")
	gt.True(t, toast.Visible())
	gt.Equal(t, toast.Link(), "https://explorer.lens.xyz/tx/0xdeadbeef")

	fake.Advance(4900 * time.Millisecond)
	gt.True(t, toast.Visible())

	fake.Advance(200 * time.Millisecond)
	gt.False(t, toast.Visible())
	gt.Equal(t, toast.Link(), "")
	gt.Equal(t, hidden, []string{"0xdeadbeef"})
	gt.Equal(t, fake.Pending(), 0)
}

func TestToastResetOnNewHash(t *testing.T) {
	toast, fake := newToast(t)

	toast.Show("0x01")
	fake.Advance(2 * time.Second)
	toast.Show("0x02")
	gt.Equal(t, fake.Pending(), 1)

	// T+5.1s: the first window would have ended
	fake.Advance(3100 * time.Millisecond)
	gt.True(t, toast.Visible())
	gt.Equal(t, toast.Link(), "https://explorer.lens.xyz/tx/0x02")

	// T+6.9s
	fake.Advance(1800 * time.Millisecond)
	gt.True(t, toast.Visible())

	// T+7.1s
	fake.Advance(200 * time.Millisecond)
	gt.False(t, toast.Visible())
}

func TestToastClose(t *testing.T) {
	fired := false
	toast, fake := newToast(t, notify.WithOnHide(func(string) { fired = true }))

	toast.Show("0xdeadbeef")
	fake.Advance(time.Second)
	toast.Close()

	gt.False(t, toast.Visible())
	gt.Equal(t, fake.Pending(), 0)

	fake.Advance(10 * time.Second)
	gt.False(t, fired)

	toast.Show("0xafter")
	gt.False(t, toast.Visible())
	gt.Equal(t, fake.Pending(), 0)
}

func TestToastRealClock(t *testing.T) {
	toast := notify.New()
	toast.Show("0xdeadbeef")
	gt.True(t, toast.Visible())
	toast.Close()
	gt.False(t, toast.Visible())
}
