// Package logging writes per-run log directories: a combined log, one
// file per scenario split into passed/ and failed/, and a summary file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/tektronix/behave/types"
)

// RunDirectoryPrefix is the standardized prefix for run directories.
const RunDirectoryPrefix = "testrun-"

// ScenarioResult is the per-scenario record handed to result sinks.
type ScenarioResult struct {
	Feature  string
	Scenario string
	Location types.Location
	Status   types.Status
	Duration time.Duration
	Error    string
}

// ResultSink is an interface for different ways of consuming scenario results
type ResultSink interface {
	// Consume processes a single scenario result
	Consume(result *ScenarioResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger handles writing run output to files
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Root log directory
	failedDir    string                // Directory for failed scenarios
	summaryFile  string                // Path to the summary file
	allLogsFile  string                // Path to the combined log file
	mu           sync.Mutex            // Protects concurrent file operations
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string                // Current run ID
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	// Make a copy of the data to avoid race conditions
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return nil
}

// processQueue processes the write queue in the background
func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			// Log the error but continue processing
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	// Wait for all writes to complete
	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates a new FileLogger with given configuration
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	// Use the standardized prefix for the run directory
	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(logDir, "failed")
	summaryFile := filepath.Join(logDir, "summary.log")
	allLogsFile := filepath.Join(logDir, "all.log")

	dirs := []string{
		baseDir,
		logDir,
		failedDir,
		filepath.Join(logDir, "passed"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    failedDir,
		summaryFile:  summaryFile,
		allLogsFile:  allLogsFile,
		sinks:        make([]ResultSink, 0),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}

	logger.sinks = append(logger.sinks, &AllLogsFileSink{logger: logger})
	logger.sinks = append(logger.sinks, &PerScenarioFileSink{
		logger:             logger,
		processedScenarios: make(map[string]bool),
	})

	return logger, nil
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

// closeAllWriters closes all async writers
func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close() // Ignore errors on close
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// GetDirectoryForRunID returns the path for a specific runID.
// The runID must be provided, otherwise an error is returned
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// LogScenarioResult processes a scenario result through all registered sinks
func (l *FileLogger) LogScenarioResult(result *ScenarioResult, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	for _, sink := range l.sinks {
		if err := sink.Consume(result, runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary writes a summary of the run to a file
func (l *FileLogger) LogSummary(summary string, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	summaryFile, err := l.GetSummaryFileForRunID(runID)
	if err != nil {
		return err
	}

	writer, err := l.getAsyncWriter(summaryFile)
	if err != nil {
		return err
	}
	return writer.Write([]byte(summary))
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}

	l.closeAllWriters()
	return nil
}

// GetBaseDir returns the run's log directory
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

// GetFailedDir returns the directory containing logs for failed scenarios
func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return l.summaryFile
}

// GetAllLogsFile returns the path to the all logs file
func (l *FileLogger) GetAllLogsFile() string {
	return l.allLogsFile
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetFailedDirForRunID returns the failed directory for a specific runID
func (l *FileLogger) GetFailedDirForRunID(runID string) (string, error) {
	baseDir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, "failed"), nil
}

// GetSummaryFileForRunID returns the summary file for a specific runID
func (l *FileLogger) GetSummaryFileForRunID(runID string) (string, error) {
	baseDir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, "summary.log"), nil
}

// GetAllLogsFileForRunID returns the path to the all.log file for the given runID
func (l *FileLogger) GetAllLogsFileForRunID(runID string) (string, error) {
	baseDir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, "all.log"), nil
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	for _, c := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "} {
		s = strings.ReplaceAll(s, c, "_")
	}
	return strings.ReplaceAll(s, "...", "")
}

// scenarioFilename generates a readable filename for a scenario's log,
// prefixed with the feature file's basename for context.
func scenarioFilename(result *ScenarioResult) string {
	base := strings.TrimSuffix(filepath.Base(result.Location.File), ".feature.yaml")
	if base == "" || base == "." {
		base = safeFilename(result.Feature)
	}
	return safeFilename(base + "_" + result.Scenario)
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// Sink implementations

// AllLogsFileSink writes all scenario results to a single "all.log" file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume writes a scenario result to the all.log file
func (s *AllLogsFileSink) Consume(result *ScenarioResult, runID string) error {
	allLogsFile, err := s.logger.GetAllLogsFileForRunID(runID)
	if err != nil {
		return err
	}

	writer, err := s.logger.getAsyncWriter(allLogsFile)
	if err != nil {
		return err
	}

	var content strings.Builder

	// A clear header with visual distinction
	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "┌────────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ SCENARIO: %-60s │\n", truncateString(result.Scenario, 60))
	fmt.Fprintf(&content, "├────────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&content, "│ Status:   %-60s │\n", result.Status)
	fmt.Fprintf(&content, "│ Feature:  %-60s │\n", truncateString(result.Feature, 60))
	fmt.Fprintf(&content, "│ Location: %-60s │\n", truncateString(result.Location.String(), 60))
	fmt.Fprintf(&content, "│ Duration: %-60s │\n", result.Duration)
	fmt.Fprintf(&content, "│ Time:     %-60s │\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&content, "└────────────────────────────────────────────────────────────────────────┘\n\n")

	if result.Error != "" {
		fmt.Fprintf(&content, "ERROR:\n")
		fmt.Fprintf(&content, "~~~~~~\n")
		fmt.Fprintf(&content, "%s\n", indentText(stripansi.Strip(result.Error), "  "))
	}

	fmt.Fprintf(&content, "\n")

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerScenarioFileSink creates dedicated log files for each scenario in
// passed/failed directories
type PerScenarioFileSink struct {
	logger             *FileLogger
	processedScenarios map[string]bool // Track which scenario files we've already written
	mu                 sync.Mutex      // Protect the processedScenarios map
}

// Consume writes a scenario result to a dedicated file in the passed or
// failed directory
func (s *PerScenarioFileSink) Consume(result *ScenarioResult, runID string) error {
	baseDir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	passedDir := filepath.Join(baseDir, "passed")
	failedDir := filepath.Join(baseDir, "failed")
	for _, dir := range []string{baseDir, passedDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	targetDir := passedDir
	if result.Status.HasFailed() {
		targetDir = failedDir
	}
	path := filepath.Join(targetDir, scenarioFilename(result)+".log")

	s.mu.Lock()
	processed := s.processedScenarios[path]
	s.processedScenarios[path] = true
	s.mu.Unlock()
	if processed {
		return nil
	}

	writer, err := s.logger.getAsyncWriter(path)
	if err != nil {
		return err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "Feature: %s  # %s\n", result.Feature, result.Location.File)
	fmt.Fprintf(&content, "Scenario: %s  # %s\n", result.Scenario, result.Location)
	fmt.Fprintf(&content, "Status: %s (%.1fs)\n", result.Status, result.Duration.Seconds())

	if result.Error != "" {
		fmt.Fprintf(&content, "\nERROR:\n")
		fmt.Fprintf(&content, "~~~~~~\n")
		fmt.Fprintf(&content, "%s\n", stripansi.Strip(result.Error))
	}

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for PerScenarioFileSink
func (s *PerScenarioFileSink) Complete(runID string) error {
	return nil
}
