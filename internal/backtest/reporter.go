package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter generates backtest reports
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, prediction log, JSON report and
// calibration table under the output path.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generatePredictionLog(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	return r.generateCalibrationReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "backtest_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.results
	fmt.Fprintf(file, "BACKTEST RESULTS SUMMARY\n")
	fmt.Fprintf(file, "========================\n\n")

	fmt.Fprintf(file, "Time Period: %s to %s\n",
		res.StartTime.Format("2006-01-02 15:04:05"),
		res.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Games Replayed: %d (skipped %d)\n\n", res.TotalGames, res.Skipped)

	fmt.Fprintf(file, "MODEL QUALITY\n")
	fmt.Fprintf(file, "-------------\n")
	fmt.Fprintf(file, "Accuracy: %.2f%% (%d/%d)\n", res.Accuracy*100, res.Correct, res.TotalGames)
	fmt.Fprintf(file, "Brier Score: %.4f\n", res.BrierScore)
	fmt.Fprintf(file, "Log Loss: %.4f\n\n", res.LogLoss)

	fmt.Fprintf(file, "HIGH-CONFIDENCE PICKS (threshold %.0f)\n", res.Threshold)
	fmt.Fprintf(file, "-----------------------------------\n")
	fmt.Fprintf(file, "Resolved Picks: %d\n", res.Picks.TotalPicks)
	fmt.Fprintf(file, "Wins: %d\n", res.Picks.Wins)
	fmt.Fprintf(file, "Losses: %d\n", res.Picks.Losses)
	fmt.Fprintf(file, "Win Rate: %.2f%%\n", res.Picks.WinPercentage)
	fmt.Fprintf(file, "Average Confidence: %.2f\n", res.Picks.AverageConfidence)
	fmt.Fprintf(file, "Profit/Loss: %.2f units\n", res.Picks.ProfitLoss)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generatePredictionLog writes one CSV row per replayed game.
func (r *Reporter) generatePredictionLog() error {
	csvPath := filepath.Join(r.outputPath, "predictions.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Match ID", "Start Time", "Home", "Away", "Home Win Prob",
		"Confidence", "Home Odds", "Home Score", "Away Score", "Home Won", "Correct", "Pick",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range r.results.Predictions {
		record := []string{
			p.MatchID,
			p.StartTime.Format("2006-01-02 15:04:05"),
			p.HomeTeam,
			p.AwayTeam,
			fmt.Sprintf("%.4f", p.HomeWinProbability),
			fmt.Sprintf("%.2f", p.Confidence),
			fmt.Sprintf("%.2f", p.HomeOdds),
			strconv.Itoa(p.HomeScore),
			strconv.Itoa(p.AwayScore),
			strconv.FormatBool(p.HomeWon),
			strconv.FormatBool(p.Correct),
			strconv.FormatBool(p.Pick),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write prediction log: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Prediction log generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "backtest_results.json")

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"start_time":  r.results.StartTime,
			"end_time":    r.results.EndTime,
			"total_games": r.results.TotalGames,
			"skipped":     r.results.Skipped,
			"correct":     r.results.Correct,
			"accuracy":    r.results.Accuracy,
			"brier_score": r.results.BrierScore,
			"log_loss":    r.results.LogLoss,
			"threshold":   r.results.Threshold,
			"picks":       r.results.Picks,
		},
		"calibration":  r.calibration(),
		"predictions":  r.results.Predictions,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// CalibrationBucket groups predictions by home-win probability decile.
type CalibrationBucket struct {
	Lower         float64 `json:"lower"`
	Upper         float64 `json:"upper"`
	Games         int     `json:"games"`
	MeanPredicted float64 `json:"meanPredicted"`
	ObservedRate  float64 `json:"observedRate"`
}

// calibration returns the non-empty deciles in ascending order.
func (r *Reporter) calibration() []CalibrationBucket {
	var buckets [10]CalibrationBucket
	var wins [10]int
	for i := range buckets {
		buckets[i].Lower = float64(i) / 10
		buckets[i].Upper = float64(i+1) / 10
	}

	for _, p := range r.results.Predictions {
		i := int(p.HomeWinProbability * 10)
		if i > 9 {
			i = 9
		}
		if i < 0 {
			i = 0
		}
		buckets[i].Games++
		buckets[i].MeanPredicted += p.HomeWinProbability
		if p.HomeWon {
			wins[i]++
		}
	}

	out := make([]CalibrationBucket, 0, len(buckets))
	for i, b := range buckets {
		if b.Games == 0 {
			continue
		}
		b.MeanPredicted /= float64(b.Games)
		b.ObservedRate = float64(wins[i]) / float64(b.Games)
		out = append(out, b)
	}
	return out
}

func (r *Reporter) generateCalibrationReport() error {
	path := filepath.Join(r.outputPath, "calibration_report.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create calibration report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Bucket", "Games", "Mean Predicted", "Observed Home Win Rate"}); err != nil {
		return err
	}
	for _, b := range r.calibration() {
		record := []string{
			fmt.Sprintf("%.1f-%.1f", b.Lower, b.Upper),
			strconv.Itoa(b.Games),
			fmt.Sprintf("%.4f", b.MeanPredicted),
			fmt.Sprintf("%.4f", b.ObservedRate),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write calibration report: %w", err)
	}

	log.Info().Str("file", path).Msg("Calibration report generated")
	return nil
}

// PrintSummary prints a summary to console
func (r *Reporter) PrintSummary() {
	res := r.results
	fmt.Println("\n========== BACKTEST SUMMARY ==========")
	fmt.Printf("Period: %s to %s\n",
		res.StartTime.Format("2006-01-02"),
		res.EndTime.Format("2006-01-02"))
	fmt.Printf("Games: %d (skipped %d)\n", res.TotalGames, res.Skipped)
	fmt.Printf("Accuracy: %.2f%%\n", res.Accuracy*100)
	fmt.Printf("Brier Score: %.4f\n", res.BrierScore)
	fmt.Printf("Log Loss: %.4f\n", res.LogLoss)
	fmt.Printf("Picks: %d resolved, %d-%d (%.2f%%)\n",
		res.Picks.TotalPicks, res.Picks.Wins, res.Picks.Losses, res.Picks.WinPercentage)
	fmt.Printf("Pick P/L: %.2f units\n", res.Picks.ProfitLoss)
	fmt.Println("======================================")
}
