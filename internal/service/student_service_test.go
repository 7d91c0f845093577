package service

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestNewRollNumberFormat(t *testing.T) {
	year := fmt.Sprintf("%d", time.Now().Year())

	for i := 0; i < 100; i++ {
		roll := newRollNumber()

		if !strings.HasPrefix(roll, "OL"+year) {
			t.Fatalf("roll %q does not start with OL%s", roll, year)
		}

		suffix := strings.TrimPrefix(roll, "OL"+year)
		if len(suffix) != 4 {
			t.Fatalf("roll %q suffix has %d digits, want 4", roll, len(suffix))
		}
		if _, err := strconv.Atoi(suffix); err != nil {
			t.Fatalf("roll %q suffix is not numeric: %v", roll, err)
		}
	}
}
