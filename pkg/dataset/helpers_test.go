package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// syntheticRows returns n rows with Amount = row number so rows stay
// identifiable after a split. Every tenth row is a fraud.
func syntheticRows(n int, seed int64) []TransactionObservation {
	rnd := rand.New(rand.NewSource(seed))
	rows := make([]TransactionObservation, n)
	for i := range rows {
		rows[i].Label = i%10 == 0
		for j := range rows[i].V {
			rows[i].V[j] = float32(rnd.NormFloat64())
		}
		rows[i].Amount = float32(i)
	}
	return rows
}

// writeRawCSV writes rows in the downloaded creditcard.csv layout:
// Time, V1..V28, Amount, "Class".
func writeRawCSV(t *testing.T, path string, rows []TransactionObservation) {
	t.Helper()
	var b strings.Builder
	b.WriteString(`"Time"`)
	for i := 1; i <= AnonymizedFeatures; i++ {
		fmt.Fprintf(&b, `,"V%d"`, i)
	}
	b.WriteString(`,"Amount","Class"` + "\n")
	for i, r := range rows {
		b.WriteString(strconv.Itoa(i))
		for _, v := range r.V {
			b.WriteString("," + strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		b.WriteString("," + strconv.FormatFloat(float64(r.Amount), 'g', -1, 32))
		if r.Label {
			b.WriteString(`,"1"` + "\n")
		} else {
			b.WriteString(`,"0"` + "\n")
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func amounts(t *Table) []float32 {
	return append([]float32(nil), t.Floats(AmountColumn)...)
}
