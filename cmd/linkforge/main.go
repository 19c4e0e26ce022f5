// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package main is the LinkForge command-line interface.
//
// LinkForge links records across one or two datasets without a shared key,
// using the Fellegi-Sunter model: candidate pairs are generated by blocking,
// classified into comparison levels, and scored by the sum of per-level
// log-odds weights.
//
// # Commands
//
//	linkforge -cmd train -left a.csv -right b.csv -model model.json -out weights.json
//	linkforge -cmd score -left a.csv -right b.csv -model model.json -weights weights.json -key zip -out scored.csv
//
// train estimates m/u probabilities per comparison level: m from the
// ground-truth label column (training.label_column, default label_true)
// present on both datasets, u from a uniform random pair sample.
//
// score blocks the datasets (by -key, or by random sampling when no key is
// given), labels every candidate pair with each comparison, sums the
// trained log-odds into a match_weight column and writes the result as CSV.
//
// # Configuration
//
// Settings load from built-in defaults, an optional config.yaml and
// LINKFORGE_* environment variables (highest priority). See
// internal/config for the full set: database tuning, blocking policy and
// training bounds.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/linkforge/linkforge/internal/block"
	"github.com/linkforge/linkforge/internal/compare"
	"github.com/linkforge/linkforge/internal/config"
	"github.com/linkforge/linkforge/internal/engine"
	"github.com/linkforge/linkforge/internal/fs"
	"github.com/linkforge/linkforge/internal/logging"
)

func main() {
	var (
		command     = flag.String("cmd", "", "Command to run: train, score")
		leftPath    = flag.String("left", "", "Path to the left dataset CSV")
		rightPath   = flag.String("right", "", "Path to the right dataset CSV (omit for self-linkage)")
		idColumn    = flag.String("id", "record_id", "Unique-identifier column name")
		modelPath   = flag.String("model", "", "Path to the model spec JSON (comparison definitions)")
		weightsPath = flag.String("weights", "weights.json", "Path to the weights JSON (output of train, input of score)")
		blockKey    = flag.String("key", "", "Blocking key column for score (omit to sample pairs)")
		outPath     = flag.String("out", "", "Output path (weights JSON for train, CSV for score)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if *command == "" || *leftPath == "" || *modelPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(cfg, *command, *leftPath, *rightPath, *idColumn, *modelPath, *weightsPath, *blockKey, *outPath); err != nil {
		logging.Fatal().Err(err).Str("command", *command).Msg("Command failed")
	}
}

func run(cfg *config.Config, command, leftPath, rightPath, idColumn, modelPath, weightsPath, blockKey, outPath string) error {
	ctx := context.Background()

	db, err := engine.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	pair, err := loadPair(ctx, db, leftPath, rightPath, idColumn)
	if err != nil {
		return err
	}

	comparisons, err := loadModelSpec(modelPath)
	if err != nil {
		return err
	}

	switch command {
	case "train":
		return runTrain(ctx, cfg, pair, comparisons, outPath, weightsPath)
	case "score":
		return runScore(ctx, cfg, pair, comparisons, weightsPath, blockKey, outPath)
	default:
		return fmt.Errorf("unknown command %q (want train or score)", command)
	}
}

// loadPair loads the datasets and validates their id columns.
// An omitted right path means self-linkage.
func loadPair(ctx context.Context, db *engine.DB, leftPath, rightPath, idColumn string) (block.DatasetPair, error) {
	leftRel, err := db.LoadCSV(ctx, "dataset_left", leftPath)
	if err != nil {
		return block.DatasetPair{}, err
	}
	left := block.NewRecordSet(leftRel, "left", idColumn)
	if err := left.CheckIDColumn(ctx); err != nil {
		return block.DatasetPair{}, err
	}

	if rightPath == "" {
		return block.NewSelfPair(left), nil
	}

	rightRel, err := db.LoadCSV(ctx, "dataset_right", rightPath)
	if err != nil {
		return block.DatasetPair{}, err
	}
	right := block.NewRecordSet(rightRel, "right", idColumn)
	if err := right.CheckIDColumn(ctx); err != nil {
		return block.DatasetPair{}, err
	}
	return block.NewDatasetPair(left, right), nil
}

func runTrain(ctx context.Context, cfg *config.Config, pair block.DatasetPair, comparisons *compare.Comparisons, outPath, weightsPath string) error {
	opts := fs.Options{
		MaxPairs:    cfg.Training.MaxPairs,
		LabelColumn: cfg.Training.LabelColumn,
	}
	if cfg.Training.Seed != 0 {
		seed := cfg.Training.Seed
		opts.Seed = &seed
	}

	weights, err := fs.TrainUsingLabels(ctx, comparisons, pair, opts)
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = weightsPath
	}
	if err := weights.WriteFile(outPath); err != nil {
		return err
	}
	logging.Info().Str("path", outPath).Int("comparisons", comparisons.Len()).Msg("Wrote trained weights")
	return nil
}

func runScore(ctx context.Context, cfg *config.Config, pair block.DatasetPair, comparisons *compare.Comparisons, weightsPath, blockKey, outPath string) error {
	if outPath == "" {
		return fmt.Errorf("score requires -out for the scored pair CSV")
	}
	weights, err := fs.ReadWeightsFile(weightsPath)
	if err != nil {
		return err
	}

	blocker, err := chooseBlocker(cfg, blockKey)
	if err != nil {
		return err
	}
	blocking, err := blocker.Block(ctx, pair)
	if err != nil {
		return err
	}
	data, err := blocking.Data(ctx)
	if err != nil {
		return err
	}

	scored := weights.ScorePairs(comparisons.LabelPairs(data, compare.ByName))
	if err := data.DB().CopyCSV(ctx, scored, outPath); err != nil {
		return err
	}

	n, err := blocking.IDs().Count(ctx)
	if err != nil {
		return err
	}
	logging.Info().Str("path", outPath).Int64("pairs", n).Msg("Wrote scored pairs")
	return nil
}

// chooseBlocker picks key blocking when a key is given, otherwise bounded
// uniform sampling under the configured policy limits.
func chooseBlocker(cfg *config.Config, blockKey string) (block.Blocker, error) {
	if blockKey != "" {
		return block.NewKeyBlocker(blockKey), nil
	}
	maxPairs := cfg.Blocking.MaxPairs
	sb := block.SamplingBlocker{
		MaxPairs:        &maxPairs,
		WarnProductSize: cfg.Blocking.WarnProductSize,
	}
	if cfg.Training.Seed != 0 {
		seed := cfg.Training.Seed
		sb.Seed = &seed
	}
	return sb, nil
}
