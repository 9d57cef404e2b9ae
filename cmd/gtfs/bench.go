package main

import (
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/tierfs"
)

var (
	benchDir       string
	benchFiles     int
	benchSize      int
	benchChunk     int
	benchKeepFiles bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Create many small files and report throughput",
	Long: `Create --files files of --size bytes each under --dir, writing --chunk
bytes per call. Reports how many files were migrated to the bulk store and the
per-file create latency.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&benchDir, "dir", "/bench", "Directory to create files in")
	benchCmd.Flags().IntVarP(&benchFiles, "files", "n", 1000, "Number of files")
	benchCmd.Flags().IntVarP(&benchSize, "size", "s", 8192, "Bytes per file")
	benchCmd.Flags().IntVar(&benchChunk, "chunk", 4096, "Bytes per write call")
	benchCmd.Flags().BoolVar(&benchKeepFiles, "keep", false, "Keep the files after the run")
	rootCmd.AddCommand(benchCmd)
}

type benchResult struct {
	files     int
	migrated  int
	bytes     int64
	elapsed   time.Duration
	latencies []time.Duration
}

func (r *benchResult) percentile(p float64) time.Duration {
	if len(r.latencies) == 0 {
		return 0
	}
	idx := int(p * float64(len(r.latencies)-1))
	return r.latencies[idx]
}

func runBench(cmd *cobra.Command, _ []string) error {
	if benchFiles <= 0 || benchSize < 0 || benchChunk <= 0 {
		return fmt.Errorf("files and chunk must be positive, size must not be negative")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.fs.Mkdirs(s.ctx, benchDir, 0); err != nil {
		return err
	}

	host, _ := os.Hostname()
	chunk := make([]byte, benchChunk)
	for i := range chunk {
		chunk[i] = byte(i)
	}

	cmd.Printf("Creating %d files of %d bytes in %s (threshold %d)\n",
		benchFiles, benchSize, benchDir, s.fs.Threshold())

	res := &benchResult{latencies: make([]time.Duration, 0, benchFiles)}
	names := make([]string, 0, benchFiles)
	start := time.Now()

	for i := 0; i < benchFiles; i++ {
		if err := s.ctx.Err(); err != nil {
			break
		}
		name := path.Join(benchDir, fmt.Sprintf("%s_p%d_f%d", host, os.Getpid(), i))

		t0 := time.Now()
		migrated, err := writeBenchFile(s, name, chunk)
		if err != nil {
			return fmt.Errorf("file %d: %w", i, err)
		}
		res.latencies = append(res.latencies, time.Since(t0))

		names = append(names, name)
		res.files++
		res.bytes += int64(benchSize)
		if migrated {
			res.migrated++
		}
	}
	res.elapsed = time.Since(start)

	sort.Slice(res.latencies, func(i, j int) bool { return res.latencies[i] < res.latencies[j] })
	printBench(cmd, res)

	if !benchKeepFiles {
		for _, name := range names {
			if err := s.fs.Delete(s.ctx, name, false); err != nil {
				logger.Warn("bench cleanup %s: %v", name, err)
			}
		}
	}
	return nil
}

func writeBenchFile(s *session, name string, chunk []byte) (bool, error) {
	w, err := s.fs.Create(s.ctx, name, tierfs.CreateOptions{Overwrite: true})
	if err != nil {
		return false, err
	}
	for left := benchSize; left > 0; {
		n := min(left, len(chunk))
		if _, err := w.Write(chunk[:n]); err != nil {
			_ = w.Close()
			return false, err
		}
		left -= n
	}
	if err := w.Close(); err != nil {
		return false, err
	}
	return w.Migrated(), nil
}

func printBench(cmd *cobra.Command, r *benchResult) {
	secs := r.elapsed.Seconds()
	if secs == 0 {
		secs = 1e-9
	}
	cmd.Printf("Files:     %d (%d migrated, %d inline)\n", r.files, r.migrated, r.files-r.migrated)
	cmd.Printf("Elapsed:   %s\n", r.elapsed.Round(time.Millisecond))
	cmd.Printf("Rate:      %.1f files/s, %.2f MiB/s\n", float64(r.files)/secs, float64(r.bytes)/secs/(1<<20))
	cmd.Printf("Latency:   p50 %s  p99 %s  max %s\n",
		r.percentile(0.50), r.percentile(0.99), r.percentile(1))
}
