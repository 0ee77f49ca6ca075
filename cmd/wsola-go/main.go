// Copyright (c) 2023 Alexander Khudich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command wsola-go is a WAV-to-WAV CLI exercising the engine end to end,
// generalizing the teacher's cmd/sonic-go tool to the distilled spec's
// speed/gain/rate controls.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	wsola "github.com/waveforge/wsola-go"
	"github.com/waveforge/wsola-go/internal/metrics"
	"github.com/waveforge/wsola-go/internal/wavio"
)

func main() {
	tempo := pflag.Float64P("tempo", "t", 1.0, "Playback tempo multiplier. 2.0 plays twice as fast without changing pitch.")
	rate := pflag.Float64P("rate", "r", 1.0, "Resample rate factor. 2.0 doubles the output frame count (lowers pitch at the original sample rate).")
	gain := pflag.Float64P("gain", "g", 1.0, "Linear gain multiplier, hard-clipped to [-1, 1].")
	in := pflag.StringP("in", "i", "", "Input WAV filename (required)")
	out := pflag.StringP("out", "o", "out.wav", "Output WAV filename")
	verbose := pflag.BoolP("verbose", "v", false, "Log state transitions and periodic progress")
	pflag.Parse()

	logger := log.Default()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *in == "" {
		logger.Error("missing required flag --in")
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(*in, *out, *tempo, *rate, *gain, *verbose, logger); err != nil {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(in, out string, tempo, rate, gain float64, verbose bool, logger *log.Logger) error {
	source, err := wavio.Open(in)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}

	sink, err := wavio.Create(out, source.Format())
	if err != nil {
		source.Close()
		return fmt.Errorf("creating output: %w", err)
	}

	player := wsola.NewPlayer(wavio.Opener{}, sink)
	player.SetMetrics(metrics.New())
	player.Observe(func(old, new wsola.PlayerState) {
		logger.Debug("player transition", "from", old, "to", new)
	})

	if err := player.Load(in); err != nil {
		return fmt.Errorf("loading: %w", err)
	}

	if err := player.SetTempo(tempo); err != nil {
		return fmt.Errorf("invalid --tempo: %w", err)
	}
	player.SetGain(gain)

	if err := player.Play(); err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}

	if err := player.SetRate(rate); err != nil {
		return fmt.Errorf("invalid --rate: %w", err)
	}

	start := time.Now()
	for player.State() == wsola.Playing {
		time.Sleep(10 * time.Millisecond)
		if verbose {
			logger.Debug("progress", "fraction", player.Progress())
		}
	}
	elapsed := time.Since(start)

	if err := sink.Close(); err != nil {
		return fmt.Errorf("finalizing output: %w", err)
	}

	if err := player.RunError(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	logger.Info("done", "elapsed", elapsed, "out", out)
	return nil
}
