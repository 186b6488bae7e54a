package service

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// DualEncoder 并联两个编码器并按列拼接输出。
// 两个 768 宽端点拼成 1536 宽向量，行序契约不变。
type DualEncoder struct {
	first  core.Embedder
	second core.Embedder
}

var _ core.Embedder = (*DualEncoder)(nil)

// NewDualEncoder 创建双编码器。
func NewDualEncoder(first, second core.Embedder) *DualEncoder {
	return &DualEncoder{first: first, second: second}
}

// Name 返回两个来源的组合名称。
func (d *DualEncoder) Name() string {
	return fmt.Sprintf("dual(%s+%s)", d.first.Name(), d.second.Name())
}

// Dimension 返回拼接后的向量宽度。
func (d *DualEncoder) Dimension() int {
	return d.first.Dimension() + d.second.Dimension()
}

// EmbedRecords 并发调用两个编码器，再把两个矩阵按列拼接。
// 任何一侧失败则整体失败，行序与输入一致。
func (d *DualEncoder) EmbedRecords(ctx context.Context, records []core.Record) (*mat.Dense, error) {
	var left, right *mat.Dense
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if left, err = d.first.EmbedRecords(gctx, records); err != nil {
			return fmt.Errorf("first encoder: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if right, err = d.second.EmbedRecords(gctx, records); err != nil {
			return fmt.Errorf("second encoder: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lr, lc := left.Dims()
	rr, rc := right.Dims()
	if lr != rr {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
			fmt.Sprintf("service: encoders returned %d and %d rows for the same records", lr, rr))
	}
	out := mat.NewDense(lr, lc+rc, nil)
	for i := 0; i < lr; i++ {
		for j := 0; j < lc; j++ {
			out.Set(i, j, left.At(i, j))
		}
		for j := 0; j < rc; j++ {
			out.Set(i, lc+j, right.At(i, j))
		}
	}
	return out, nil
}

// Close 关闭两个底层编码器，错误合并返回。
func (d *DualEncoder) Close(ctx context.Context) error {
	return multierr.Append(d.first.Close(ctx), d.second.Close(ctx))
}
