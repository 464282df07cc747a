package registry

import (
	"fmt"
	"strings"
	"time"

	"sentinel/internal/errors"
	"sentinel/pkg/models"

	"github.com/sirupsen/logrus"
)

// DefaultMaliciousAddresses 内置的已知恶意地址名单。策略数据，
// 进程启动时加载一次，之后不再变化
var DefaultMaliciousAddresses = []string{
	"0xacba164135904dc63c5418b57ff87efd341d7c80",
	"0x00000000219ab540356cbb839cbe05303d7705fa",
	"0x7f268357a8c2552623316e2562d90e642bb538e5",
	"0x3f5ce5fbfe3e9af3971dd833d26ba9b5c936f0be",
	"0xd90e2f925da726b50c4ed8d0fb90ad053324f31b",
	"0x05f51aab068caa6ab7eeb672f88c180f67f17ec7",
	"0x8576acc5c05d6ce88f4e49bf65bdf0c62f91353c",
}

// ThreatRegistry 已知恶意地址登记表。集合在构造时固定，
// 所有查询均为O(1)且大小写不敏感
type ThreatRegistry struct {
	addresses map[string]struct{}
	logger    *logrus.Logger
}

// NewThreatRegistry 创建登记表。addrs为空时使用内置默认名单；
// 传入地址在加载时统一转为小写
func NewThreatRegistry(addrs []string, logger *logrus.Logger) *ThreatRegistry {
	if len(addrs) == 0 {
		addrs = DefaultMaliciousAddresses
	}

	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[strings.ToLower(a)] = struct{}{}
	}

	if logger != nil {
		logger.Infof("恶意地址登记表已加载，共 %d 条记录", len(set))
	}

	return &ThreatRegistry{
		addresses: set,
		logger:    logger,
	}
}

// IsKnown 判断地址是否在已知恶意名单中
func (r *ThreatRegistry) IsKnown(addr string) bool {
	_, exists := r.addresses[strings.ToLower(addr)]
	return exists
}

// Size 返回名单条目数
func (r *ThreatRegistry) Size() int {
	return len(r.addresses)
}

// WarningFor 为已知恶意地址生成警告。前置条件：调用方必须先通过
// IsKnown确认地址在名单中，否则返回SecurityError。
// 名单命中一律按最严重类别处理，不依赖后续任何启发式结果
func (r *ThreatRegistry) WarningFor(addr string) (*models.SecurityWarning, error) {
	normalized := strings.ToLower(addr)

	if !r.IsKnown(normalized) {
		return nil, errors.NewSecurityError(errors.SeverityHigh,
			"不能为非恶意地址生成恶意地址警告").WithAddress(normalized)
	}

	return &models.SecurityWarning{
		Level:     models.WarningLevelCritical,
		Message:   fmt.Sprintf("地址 %s 在已知恶意合约名单中，请勿与其交互", normalized),
		Address:   normalized,
		Timestamp: time.Now(),
		Category:  models.CategoryDeceptiveEvents,
	}, nil
}
