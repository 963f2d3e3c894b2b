package models

import (
	"fmt"
	"testing"
	"time"
)

// BenchmarkSnapshotView measures the copy taken under the registry lock.
func BenchmarkSnapshotView(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			r := NewRegistry(t0)
			for i := 1; i <= n; i++ {
				r.Touch(int64(i), "user", t0.Add(time.Duration(i)*time.Millisecond))
			}

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				r.SnapshotView()
			}
		})
	}
}

func BenchmarkAdmit(b *testing.B) {
	rl, _ := NewRateLimiter(10, time.Minute)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rl.Admit(int64(i%1000+1), t0.Add(time.Duration(i)*time.Millisecond))
	}
}
