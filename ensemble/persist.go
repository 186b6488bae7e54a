package ensemble

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

const (
	modelFileName = "model.json"
	aucsFileName  = "individual_aucs.json"
)

// aucRecord 是 AUC 向量文件中的一项。文件是 JSON 数组，
// 数组顺序即持久化时的花名册顺序。
type aucRecord struct {
	Name string  `json:"name"`
	AUC  float64 `json:"auc"`
}

// SaveAll 把每个在册成员写入 <dir>/<成员名>/model.json，并在 <dir>
// 下写出与花名册对齐的有序 AUC 向量 individual_aucs.json。
func (p *Predictor) SaveAll(dir string) error {
	if err := p.requireTrained(); err != nil {
		return err
	}
	records := make([]aucRecord, 0, len(p.members))
	for _, m := range p.members {
		state, err := m.Model.StateBytes()
		if err != nil {
			return fmt.Errorf("serialize member %s: %w", m.Name(), err)
		}
		memberDir := filepath.Join(dir, m.Name())
		if err := os.MkdirAll(memberDir, 0o755); err != nil {
			return fmt.Errorf("create member dir: %w", err)
		}
		path := filepath.Join(memberDir, modelFileName)
		if err := os.WriteFile(path, state, 0o644); err != nil {
			return fmt.Errorf("write member artifact: %w", err)
		}
		records = append(records, aucRecord{Name: m.Name(), AUC: m.AUC})
		p.logger.Info("member saved", zap.String("model", m.Name()), zap.String("path", path))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode auc vector: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, aucsFileName), data, 0o644); err != nil {
		return fmt.Errorf("write auc vector: %w", err)
	}
	return nil
}

// LoadAll 从工件目录重建聚合器。花名册严格以磁盘现状为准：
// AUC 向量里列出但工件缺失的成员被剔除并记警告，不构成错误；
// AUC 向量文件本身缺失或没有任何成员工件则返回 NOT_FOUND。
func LoadAll(dir string, opts ...Option) (*Predictor, error) {
	p := New(opts...)
	data, err := os.ReadFile(filepath.Join(dir, aucsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeNotFound,
				fmt.Sprintf("ensemble: auc vector not found in %s", dir))
		}
		return nil, fmt.Errorf("read auc vector: %w", err)
	}
	var records []aucRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode auc vector: %w", err)
	}
	for _, rec := range records {
		path := filepath.Join(dir, rec.Name, modelFileName)
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				p.logger.Warn("member artifact missing, excluded from roster",
					zap.String("model", rec.Name), zap.String("path", path))
				continue
			}
			return nil, fmt.Errorf("read artifact for %s: %w", rec.Name, err)
		}
		net, err := nn.FromState(raw)
		if err != nil {
			return nil, fmt.Errorf("rebuild member %s: %w", rec.Name, err)
		}
		p.members = append(p.members, Member{Model: net, AUC: rec.AUC})
	}
	if len(p.members) == 0 {
		return nil, core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeNotFound,
			"ensemble: no member artifacts found in "+dir)
	}
	p.state = StateTrained
	p.logger.Info("ensemble loaded", zap.Int("members", len(p.members)), zap.String("dir", dir))
	return p, nil
}
