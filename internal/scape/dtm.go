package scape

import (
	"context"
	"fmt"
	"strings"
)

const (
	dtmFitnessStart = 50.0
	dtmCrashPenalty = 0.4
	dtmMaxRunSteps  = 8
	dtmStartHeading = 90
	dtmTurnCW       = 270
	dtmTurnCCW      = 90
)

// DTMScape is the delayed T-maze. The phenotype walks from the stem to one of
// two arm ends; the large and small rewards swap sides once per episode, so
// a phenotype has to remember where the large reward last was.
//
// Inputs are [left open, front open, right open, large reward, small reward].
// Outputs are [turn clockwise, turn counterclockwise]; both or neither move
// forward. Hidden state persists across moves within an episode.
type DTMScape struct {
	Steps int
	// Seed places the reward switch inside the mode's switch window.
	Seed int64
}

func (DTMScape) Name() string {
	return "dtm"
}

func (DTMScape) Dimensions() (int, int) {
	return 5, 2
}

func (s DTMScape) Evaluate(ctx context.Context, phenotype Phenotype) (Fitness, Trace, error) {
	return s.EvaluateMode(ctx, phenotype, "gt")
}

func (s DTMScape) EvaluateMode(ctx context.Context, phenotype Phenotype, mode string) (Fitness, Trace, error) {
	cfg, err := dtmConfigForMode(mode)
	if err != nil {
		return 0, nil, err
	}
	if phenotype == nil {
		return 0, nil, fmt.Errorf("phenotype is required")
	}
	return evaluateDTM(ctx, phenotype, cfg, s.Seed, settleSteps(s.Steps))
}

type dtmCoord struct {
	x int
	y int
}

var (
	dtmStart    = dtmCoord{x: 0, y: 0}
	dtmLeftArm  = dtmCoord{x: -1, y: 1}
	dtmRightArm = dtmCoord{x: 1, y: 1}
)

type dtmView struct {
	next    dtmCoord
	hasNext bool
	left    bool
	front   bool
	right   bool
}

type dtmSector struct {
	reward float64
	views  map[int]dtmView
}

type dtmModeConfig struct {
	mode         string
	totalRuns    int
	switchFloor  int
	switchSpread int
}

func dtmConfigForMode(mode string) (dtmModeConfig, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		return dtmModeConfig{mode: "gt", totalRuns: 100, switchFloor: 35, switchSpread: 30}, nil
	case "validation":
		return dtmModeConfig{mode: "validation", totalRuns: 72, switchFloor: 18, switchSpread: 20}, nil
	case "test":
		return dtmModeConfig{mode: "test", totalRuns: 72, switchFloor: 42, switchSpread: 20}, nil
	default:
		return dtmModeConfig{}, fmt.Errorf("unsupported dtm mode: %s", mode)
	}
}

type dtmEpisode struct {
	sectors   map[dtmCoord]dtmSector
	position  dtmCoord
	direction int
	acc       float64
}

func evaluateDTM(ctx context.Context, phenotype Phenotype, cfg dtmModeConfig, seed int64, steps int) (Fitness, Trace, error) {
	episode := dtmEpisode{
		sectors:   buildTMazeSectors(),
		position:  dtmStart,
		direction: dtmStartHeading,
		acc:       dtmFitnessStart,
	}
	switchAt := dtmSwitchRun(seed, cfg)
	leftRuns, rightRuns, crashRuns, timeoutRuns, moves := 0, 0, 0, 0, 0

	phenotype.Clear()
	for run := 0; run < cfg.totalRuns; run++ {
		if run == switchAt {
			episode.swapRewards()
		}
		episode.position, episode.direction = dtmStart, dtmStartHeading

		for runSteps := 0; ; runSteps++ {
			if err := ctx.Err(); err != nil {
				return 0, nil, err
			}
			if runSteps >= dtmMaxRunSteps {
				episode.acc -= dtmCrashPenalty
				timeoutRuns++
				break
			}

			sector := episode.sectors[episode.position]
			phenotype.Update(episode.sense(), steps)
			out := phenotype.Outputs()
			if len(out) < 2 {
				return 0, nil, fmt.Errorf("dtm requires 2 outputs, got %d", len(out))
			}
			moves++

			if episode.position == dtmLeftArm || episode.position == dtmRightArm {
				episode.acc += sector.reward
				if episode.position == dtmLeftArm {
					leftRuns++
				} else {
					rightRuns++
				}
				break
			}

			cw, ccw := out[0] != 0, out[1] != 0
			switch {
			case cw && !ccw:
				episode.direction = (episode.direction + dtmTurnCW) % 360
			case ccw && !cw:
				episode.direction = (episode.direction + dtmTurnCCW) % 360
			}
			view := sector.views[episode.direction]
			if !view.hasNext {
				episode.acc -= dtmCrashPenalty
				crashRuns++
				break
			}
			episode.position = view.next
		}
	}

	return Fitness(episode.acc), Trace{
		"mode":                cfg.mode,
		"fitness_start":       dtmFitnessStart,
		"fitness_delta":       episode.acc - dtmFitnessStart,
		"total_runs":          cfg.totalRuns,
		"switch_event":        switchAt,
		"left_terminal_runs":  leftRuns,
		"right_terminal_runs": rightRuns,
		"crash_runs":          crashRuns,
		"timeout_runs":        timeoutRuns,
		"moves":               moves,
	}, nil
}

// dtmSwitchRun picks the run at which the rewards swap: floor plus a value in
// [1, spread] derived from seed.
func dtmSwitchRun(seed int64, cfg dtmModeConfig) int {
	if cfg.totalRuns <= 1 {
		return 0
	}
	spread := max(cfg.switchSpread, 1)
	offset := int(seed % int64(spread))
	if offset < 0 {
		offset += spread
	}
	return min(max(cfg.switchFloor, 0)+offset+1, cfg.totalRuns-1)
}

func buildTMazeSectors() map[dtmCoord]dtmSector {
	return map[dtmCoord]dtmSector{
		dtmStart: {
			views: map[int]dtmView{
				0:   {left: true},
				90:  {hasNext: true, next: dtmCoord{x: 0, y: 1}, front: true},
				180: {right: true},
				270: {},
			},
		},
		{x: 0, y: 1}: {
			views: map[int]dtmView{
				0:   {hasNext: true, next: dtmRightArm, front: true, right: true},
				90:  {left: true, right: true},
				180: {hasNext: true, next: dtmLeftArm, left: true, front: true},
				270: {hasNext: true, next: dtmStart, left: true, front: true, right: true},
			},
		},
		dtmRightArm: {
			reward: 1,
			views: map[int]dtmView{
				0:   {},
				90:  {left: true},
				180: {hasNext: true, next: dtmCoord{x: 0, y: 1}, front: true},
				270: {right: true},
			},
		},
		dtmLeftArm: {
			reward: 0.2,
			views: map[int]dtmView{
				0:   {hasNext: true, next: dtmCoord{x: 0, y: 1}, front: true},
				90:  {right: true},
				180: {},
				270: {left: true},
			},
		},
	}
}

func (e *dtmEpisode) swapRewards() {
	ls, rs := e.sectors[dtmLeftArm], e.sectors[dtmRightArm]
	ls.reward, rs.reward = rs.reward, ls.reward
	e.sectors[dtmLeftArm], e.sectors[dtmRightArm] = ls, rs
}

func (e *dtmEpisode) sense() []int {
	sector := e.sectors[e.position]
	view := sector.views[e.direction]
	large, small := 0, 0
	switch {
	case sector.reward >= 1:
		large = 1
	case sector.reward > 0:
		small = 1
	}
	return []int{bit(view.left), bit(view.front), bit(view.right), large, small}
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
