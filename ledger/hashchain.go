package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// GenesisSentinel 是每条链第一条投票记录的prev_hash占位值
const GenesisSentinel = "GENESIS"

// ReceiptCodeLength 回执码长度（十六进制字符数，约64位熵）
const ReceiptCodeLength = 16

// VoterRef 表示投票者引用：实名投票携带用户ID，匿名投票在哈希输入中不包含身份
type VoterRef struct {
	userID    string
	anonymous bool
}

// IdentifiedVoter 创建实名投票者引用
func IdentifiedVoter(userID string) VoterRef {
	return VoterRef{userID: userID}
}

// AnonymousVoter 创建匿名投票者引用
func AnonymousVoter() VoterRef {
	return VoterRef{anonymous: true}
}

// HashForm 返回投票者在哈希输入中的规范文本形式。
// 匿名投票固定为空字符串，保证任何持有链数据的人都能复算哈希。
func (v VoterRef) HashForm() string {
	if v.anonymous {
		return ""
	}
	return v.userID
}

// Anonymous 报告该引用是否为匿名
func (v VoterRef) Anonymous() bool {
	return v.anonymous
}

// ComputeVoteHash 计算一条投票记录的链哈希。
// 输入按固定文本形式用"|"拼接后做SHA-256，输出小写十六进制摘要。
// 同样的四元组永远得到同样的哈希。
func ComputeVoteHash(voter VoterRef, optionID uint, timestampNS int64, prevHash string) string {
	canonical := strings.Join([]string{
		voter.HashForm(),
		strconv.FormatUint(uint64(optionID), 10),
		strconv.FormatInt(timestampNS, 10),
		prevHash,
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// DeriveReceiptCode 从投票哈希派生对人友好的回执码：
// 取十六进制摘要前16个字符并转为大写。
func DeriveReceiptCode(voteHash string) string {
	if len(voteHash) < ReceiptCodeLength {
		return strings.ToUpper(voteHash)
	}
	return strings.ToUpper(voteHash[:ReceiptCodeLength])
}

// NormalizeReceiptCode 将外部输入的回执码归一化为存储形式
func NormalizeReceiptCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
