package trainer

import (
	"context"
	"fmt"
)

// Spec 一次训练任务的描述：目录里的模型 ID + 超参数。
type Spec struct {
	ModelID         string
	DisplayName     string
	TaskType        string // classification | regression
	Hyperparameters map[string]interface{}
}

// Dataset 已经数值化、切分好的训练数据。分类任务的 y 是类别编码（0..k-1）。
type Dataset struct {
	XTrain [][]float64
	YTrain []float64
	XTest  [][]float64
	YTest  []float64
}

// Trainer 训练单个模型并返回评估指标。实现必须尊重 ctx 取消。
// 这是接入真实训练后端（外部计算集群）的缝；Local 是进程内的基线实现。
type Trainer interface {
	Train(ctx context.Context, spec Spec, data *Dataset) (map[string]float64, error)
}

// Local 进程内基线训练器：纯 Go 实现的一组简单学习器，
// 让流水线不依赖外部算力也能端到端跑通。
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Train(ctx context.Context, spec Spec, data *Dataset) (map[string]float64, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch spec.TaskType {
	case "classification":
		return l.trainClassifier(ctx, spec, data)
	case "regression":
		return l.trainRegressor(ctx, spec, data)
	}
	return nil, fmt.Errorf("unsupported task type %q", spec.TaskType)
}

func (l *Local) trainClassifier(ctx context.Context, spec Spec, data *Dataset) (map[string]float64, error) {
	var (
		pred []float64
		err  error
	)
	switch spec.ModelID {
	case "logistic_regression":
		pred, err = logisticOVR(ctx, data, floatParam(spec.Hyperparameters, "learning_rate", 0.1), intParam(spec.Hyperparameters, "max_iter", 200))
	case "naive_bayes":
		pred, err = gaussianNB(ctx, data)
	case "knn":
		pred, err = knnClassify(ctx, data, intParam(spec.Hyperparameters, "n_neighbors", 5))
	case "decision_tree":
		pred, err = treeClassify(ctx, data, intParam(spec.Hyperparameters, "max_depth", 10))
	case "random_forest":
		pred, err = forestClassify(ctx, data, intParam(spec.Hyperparameters, "n_estimators", 25), intParam(spec.Hyperparameters, "max_depth", 10))
	case "gradient_boosting":
		pred, err = boostClassify(ctx, data, intParam(spec.Hyperparameters, "n_estimators", 25), floatParam(spec.Hyperparameters, "learning_rate", 0.1))
	default:
		return nil, fmt.Errorf("unknown classification model %q", spec.ModelID)
	}
	if err != nil {
		return nil, err
	}
	return classificationMetrics(data.YTest, pred), nil
}

func (l *Local) trainRegressor(ctx context.Context, spec Spec, data *Dataset) (map[string]float64, error) {
	var (
		pred []float64
		err  error
	)
	switch spec.ModelID {
	case "linear_regression":
		pred, err = linearGD(ctx, data, 0, floatParam(spec.Hyperparameters, "learning_rate", 0.05), intParam(spec.Hyperparameters, "max_iter", 500))
	case "ridge":
		pred, err = linearGD(ctx, data, floatParam(spec.Hyperparameters, "alpha", 1.0), floatParam(spec.Hyperparameters, "learning_rate", 0.05), intParam(spec.Hyperparameters, "max_iter", 500))
	case "decision_tree_reg":
		pred, err = treeRegress(ctx, data, intParam(spec.Hyperparameters, "max_depth", 10))
	case "random_forest_reg":
		pred, err = forestRegress(ctx, data, intParam(spec.Hyperparameters, "n_estimators", 25), intParam(spec.Hyperparameters, "max_depth", 10))
	case "gradient_boosting_reg":
		pred, err = boostRegress(ctx, data, intParam(spec.Hyperparameters, "n_estimators", 25), floatParam(spec.Hyperparameters, "learning_rate", 0.1))
	case "knn_reg":
		pred, err = knnRegress(ctx, data, intParam(spec.Hyperparameters, "n_neighbors", 5))
	default:
		return nil, fmt.Errorf("unknown regression model %q", spec.ModelID)
	}
	if err != nil {
		return nil, err
	}
	return regressionMetrics(data.YTest, pred), nil
}

func validate(data *Dataset) error {
	if data == nil || len(data.XTrain) == 0 || len(data.XTest) == 0 {
		return fmt.Errorf("training data is empty")
	}
	if len(data.XTrain) != len(data.YTrain) || len(data.XTest) != len(data.YTest) {
		return fmt.Errorf("feature/label length mismatch")
	}
	return nil
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return fallback
}

func floatParam(params map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}
