// Command simulate prints decoder output as multimon-ng would, for running
// the receiver without radio hardware:
//
//	simulate | server --input stdin
//	DECODER_COMMAND="simulate --interval 2s" server
package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// page is one transmission, possibly addressed to several capcodes.
type page struct {
	group    string
	capcodes []string
	body     string
	pocsag   bool
}

var pages = []page{
	{group: "10.120", capcodes: []string{"001523172", "001523173"}, body: "A1 Boerhaavelaan HAARLM : 16172"},
	{group: "04.093", capcodes: []string{"002029568", "000120999", "000120342"}, body: "A2 13342 Rit 92107 Amsterdam Carolina MacGillavrylaan 1098XB"},
	{group: "09.069", capcodes: []string{"000923993"}, body: "P 1 BDH-01 Brandmelding Kerkstraat Utrecht 3511 012131"},
	{group: "12.042", capcodes: []string{"001420059", "001420999"}, body: "B2 Ambu 17128 Ziekenhuis Rijnstate Arnhem"},
	{group: "03.011", capcodes: []string{"000320591"}, body: "PRIO 4 Dienstverlening Stationsplein Zwolle"},
	{group: "", capcodes: []string{"104206"}, body: "Test bericht", pocsag: true},
}

func main() {
	var (
		interval time.Duration
		count    int
		pipe     bool
	)
	flagSet := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flagSet.DurationVar(&interval, "interval", 3*time.Second, "delay between pages")
	flagSet.IntVar(&count, "count", 0, "number of pages to emit (0 = forever)")
	flagSet.BoolVar(&pipe, "pipe", false, "use the pipe-delimited FLEX dialect")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Fprintln(out, "multimon-ng 1.1.8 (simulated)")
	fmt.Fprintln(out, "Enabled demodulators: FLEX POCSAG512 POCSAG1200 POCSAG2400")
	out.Flush()

	for sent := 0; count == 0 || sent < count; sent++ {
		p := pages[rand.IntN(len(pages))]
		for _, line := range render(p, time.Now(), pipe) {
			fmt.Fprintln(out, line)
		}
		if err := out.Flush(); err != nil {
			// The reader went away.
			logger.Debug().Err(err).Msg("stdout closed")
			return
		}
		logger.Debug().Str("body", p.body).Int("recipients", len(p.capcodes)).Msg("page sent")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// render formats p as decoder lines. The legacy FLEX dialect repeats the
// page once per capcode, back to back.
func render(p page, now time.Time, pipe bool) []string {
	ts := now.Format("2006-01-02 15:04:05")

	if p.pocsag {
		return []string{fmt.Sprintf("POCSAG1200: Address: %7s  Function: 3  Alpha:   %s", p.capcodes[0], p.body)}
	}
	if pipe {
		return []string{fmt.Sprintf("FLEX|%s|1600/2/K/A|%s|%s|ALN|%s", ts, p.group, strings.Join(p.capcodes, " "), p.body)}
	}

	lines := make([]string, 0, len(p.capcodes))
	for _, capcode := range p.capcodes {
		lines = append(lines, fmt.Sprintf("FLEX: %s 1600/2/K/A %s [%s] ALN %s", ts, p.group, capcode, p.body))
	}
	return lines
}
