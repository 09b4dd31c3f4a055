package tickgen

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

func writeBars(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadBarsPrefixedColumns(t *testing.T) {
	path := writeBars(t, "Date,AAPL.Open,AAPL.High,AAPL.Low,AAPL.Close,AAPL.Volume\n2024-01-02,100,105,99,104,1000000\nbadrow,x,x,x,x,x\n2024-01-03,104,106,103,105,900000\n")

	bars, err := LoadBars(path)
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (bad row skipped)", len(bars))
	}
	if bars[0].Open != 100 || bars[0].Close != 104 || bars[1].Volume != 900000 {
		t.Errorf("bars = %+v", bars)
	}
}

func TestLoadBarsMissingColumn(t *testing.T) {
	path := writeBars(t, "open,high,low,close\n1,2,0.5,1.5\n")
	if _, err := LoadBars(path); err == nil {
		t.Fatal("missing volume column must fail")
	}
}

func TestGenerateTickSchemaAndPairing(t *testing.T) {
	bars := []Bar{{Open: 100, High: 106, Low: 98, Close: 104, Volume: 400_000}}
	out := filepath.Join(t.TempDir(), "ticks.csv")

	gen := NewGenerator(zap.NewNop(), DefaultConfig())
	if err := gen.Generate(bars, out); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	header := records[0]
	want := []string{"ts_ns", "side", "price", "qty"}
	for i := range want {
		if header[i] != want[i] {
			t.Fatalf("header = %v", header)
		}
	}

	rows := records[1:]
	if len(rows)%2 != 0 {
		t.Fatal("rows must come in BUY/SELL pairs")
	}
	// 400k volume -> 400 snapshots
	if len(rows) != 800 {
		t.Fatalf("got %d rows, want 800", len(rows))
	}

	var lastTS int64
	for i := 0; i < len(rows); i += 2 {
		buy, sell := rows[i], rows[i+1]
		if buy[1] != "BUY" || sell[1] != "SELL" {
			t.Fatalf("pair %d has sides %s/%s", i/2, buy[1], sell[1])
		}
		if buy[0] != sell[0] {
			t.Fatalf("pair %d timestamps differ: %s vs %s", i/2, buy[0], sell[0])
		}
		ts, err := strconv.ParseInt(buy[0], 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		if ts <= lastTS {
			t.Fatalf("timestamps not strictly increasing at pair %d", i/2)
		}
		lastTS = ts

		bid, err1 := strconv.ParseFloat(buy[2], 64)
		ask, err2 := strconv.ParseFloat(sell[2], 64)
		if err1 != nil || err2 != nil {
			t.Fatal("unparsable prices")
		}
		if ask <= bid {
			t.Fatalf("pair %d: ask %v <= bid %v", i/2, ask, bid)
		}
		// quotes stay near the bar's range, allowing for the half spread
		if bid < 98-1 || ask > 106+1 {
			t.Fatalf("pair %d: quote %v/%v far outside bar range", i/2, bid, ask)
		}

		qty, err := strconv.ParseInt(buy[3], 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		if qty%10 != 0 || qty < 10 {
			t.Fatalf("qty %d not a positive lot multiple", qty)
		}
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	bars := []Bar{{Open: 50, High: 55, Low: 48, Close: 52, Volume: 300_000}}
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")

	if err := NewGenerator(zap.NewNop(), DefaultConfig()).Generate(bars, a); err != nil {
		t.Fatal(err)
	}
	if err := NewGenerator(zap.NewNop(), DefaultConfig()).Generate(bars, b); err != nil {
		t.Fatal(err)
	}

	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if string(da) != string(db) {
		t.Fatal("same seed must produce identical output")
	}
}

func TestTicksPerDayBounds(t *testing.T) {
	if got := ticksPerDay(0); got != 200 {
		t.Errorf("low volume clamp = %d, want 200", got)
	}
	if got := ticksPerDay(1e9); got != 5000 {
		t.Errorf("high volume clamp = %d, want 5000", got)
	}
	if got := ticksPerDay(1_000_000); got != 1000 {
		t.Errorf("mid volume = %d, want 1000", got)
	}
}
