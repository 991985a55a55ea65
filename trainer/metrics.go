package trainer

import "math"

// classificationMetrics 准确率 + 按类别支持度加权的精确率/召回率/F1。
func classificationMetrics(yTrue, yPred []float64) map[string]float64 {
	n := len(yTrue)
	if n == 0 {
		return map[string]float64{}
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	classes := distinctLabels(yTrue)
	var weightedPrec, weightedRec, weightedF1 float64
	for _, class := range classes {
		var tp, fp, fn, support float64
		for i := range yTrue {
			switch {
			case yTrue[i] == class && yPred[i] == class:
				tp++
			case yTrue[i] != class && yPred[i] == class:
				fp++
			case yTrue[i] == class && yPred[i] != class:
				fn++
			}
			if yTrue[i] == class {
				support++
			}
		}
		prec, rec := 0.0, 0.0
		if tp+fp > 0 {
			prec = tp / (tp + fp)
		}
		if tp+fn > 0 {
			rec = tp / (tp + fn)
		}
		f1 := 0.0
		if prec+rec > 0 {
			f1 = 2 * prec * rec / (prec + rec)
		}
		weight := support / float64(n)
		weightedPrec += weight * prec
		weightedRec += weight * rec
		weightedF1 += weight * f1
	}

	return map[string]float64{
		"accuracy":  float64(correct) / float64(n),
		"precision": weightedPrec,
		"recall":    weightedRec,
		"f1_score":  weightedF1,
	}
}

// regressionMetrics mse/rmse/mae/r2。
func regressionMetrics(yTrue, yPred []float64) map[string]float64 {
	n := len(yTrue)
	if n == 0 {
		return map[string]float64{}
	}

	var sse, sae, mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(n)

	var sst float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sse += diff * diff
		sae += math.Abs(diff)
		dm := yTrue[i] - mean
		sst += dm * dm
	}

	mse := sse / float64(n)
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - sse/sst
	}

	return map[string]float64{
		"mse":      mse,
		"rmse":     math.Sqrt(mse),
		"mae":      sae / float64(n),
		"r2_score": r2,
	}
}
