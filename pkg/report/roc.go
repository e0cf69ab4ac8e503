package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"frauddetect/pkg/model"
)

// PlotROC renders the ROC curve of scores against labels to a PNG at path,
// with the chance diagonal for reference.
func PlotROC(path string, labels []bool, scores []float64) error {
	if len(labels) != len(scores) {
		return fmt.Errorf("report: %d labels for %d scores", len(labels), len(scores))
	}
	fpr, tpr := model.ROCCurve(labels, scores)
	if fpr == nil {
		return errors.New("report: ROC needs both classes")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC (AUC = %.4f)", model.AUC(labels, scores))
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(fpr))
	for i := range fpr {
		pts[i] = plotter.XY{X: fpr[i], Y: tpr[i]}
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: roc line: %w", err)
	}
	curve.LineStyle.Width = vg.Points(2)

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return fmt.Errorf("report: chance line: %w", err)
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(plotter.NewGrid(), chance, curve)
	p.Legend.Add("model", curve)
	p.Legend.Add("chance", chance)
	p.Legend.Left = false
	p.Legend.Top = false

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create dir for %s: %w", path, err)
	}
	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}
