package jointrnn

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/gorgonia/jointrnn/metrics"
	"github.com/pkg/errors"
)

// Statistics keeps every report produced during a run.
type Statistics struct {
	Training []metrics.Report
	Testing  []metrics.Report
}

func makeStatistics() Statistics {
	return Statistics{
		Training: make([]metrics.Report, 0, 64),
		Testing:  make([]metrics.Report, 0, 8),
	}
}

func (s *Statistics) update(r metrics.Report) {
	if r.Phase == metrics.Testing {
		s.Testing = append(s.Testing, r)
		return
	}
	s.Training = append(s.Training, r)
}

// Records returns the reports as CSV records, training reports first, with a header row.
func (s *Statistics) Records() [][]string {
	header := []string{"phase", "iter", "mae", "rmse", "nll", "err_rate", "expnll"}
	records := [][]string{header}
	for _, reps := range [][]metrics.Report{s.Training, s.Testing} {
		for _, r := range reps {
			record := []string{r.Phase.String(), strconv.Itoa(r.Iter)}
			for _, v := range []float64{r.MAE, r.RMSE, r.NLL, r.ErrRate} {
				record = append(record, strconv.FormatFloat(v, 'f', 4, 64))
			}
			var exp string
			if r.HasExpNLL {
				exp = strconv.FormatFloat(r.ExpNLL, 'f', 4, 64)
			}
			records = append(records, append(record, exp))
		}
	}
	return records
}

// Dump writes the reports to filename as CSV.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(s.Records()); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
