// Package keyword implements the canned-reply matcher used to simulate
// foster-family responses in peer conversations.
package keyword

import (
	"math/rand"
	"strings"
	"unicode/utf8"
)

// ShortMessageLimit is the maximum rune length for a message to qualify for
// groups flagged ShortOnly.
const ShortMessageLimit = 6

// Group is one entry in the ordered matching table. Earlier groups take
// precedence over later ones.
type Group struct {
	// Keywords match as substrings against the lower-cased, trimmed input.
	Keywords []string `json:"keywords"`

	// Replies are the candidate canned replies; one is picked at random.
	Replies []string `json:"replies"`

	// ShortOnly restricts the group to inputs of at most ShortMessageLimit
	// runes, so short acknowledgements don't hijack longer sentences.
	ShortOnly bool `json:"short_only,omitempty"`
}

// Matcher scans an ordered group table and picks a reply for the first match.
type Matcher struct {
	groups []Group
	intn   func(n int) int
}

// NewMatcher creates a matcher over the given group table. A nil or empty
// table means PickReply always returns "".
func NewMatcher(groups []Group) *Matcher {
	return &Matcher{groups: groups, intn: rand.Intn}
}

// PickReply returns a canned reply for the message, or "" if no group
// matches. Matching is case-insensitive and precedence is table order: the
// first matching group wins and its reply is chosen uniformly at random.
func (m *Matcher) PickReply(userMessage string) string {
	msg := strings.ToLower(strings.TrimSpace(userMessage))
	if msg == "" {
		return ""
	}

	runeLen := utf8.RuneCountInString(msg)
	for _, g := range m.groups {
		if g.ShortOnly && runeLen > ShortMessageLimit {
			continue
		}
		if !matchesAny(msg, g.Keywords) {
			continue
		}
		if len(g.Replies) == 0 {
			return ""
		}
		return g.Replies[m.intn(len(g.Replies))]
	}
	return ""
}

func matchesAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(msg, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DefaultGroups returns the reply table shipped with the application.
// Ordering encodes precedence: greeting and identity phrases come before the
// generic short acknowledgements so "你好" isn't swallowed by the short bucket.
func DefaultGroups() []Group {
	return []Group{
		{
			Keywords: []string{"你好", "您好", "hi", "hello", "在吗", "在么", "在不在"},
			Replies: []string{
				"你好呀～很高兴收到你的消息！",
				"在的在的，有什么想了解的吗？",
				"你好！是想问小家伙的情况吗？",
			},
		},
		{
			Keywords: []string{"领养", "申请", "条件", "要求", "流程"},
			Replies: []string{
				"领养的话需要先在平台提交申请，我们会看一下你的居住环境和养宠经验哦。",
				"流程不复杂：提交申请→沟通确认→视频或上门家访→签协议接走～",
				"可以先提交领养申请，通过后我们约时间见面看看是否合眼缘。",
			},
		},
		{
			Keywords: []string{"照片", "视频", "看看", "图片"},
			Replies: []string{
				"稍等，我晚点拍几张最新的照片发你～",
				"它刚睡醒，等下给你录个小视频！",
			},
		},
		{
			Keywords: []string{"疫苗", "驱虫", "绝育", "体检"},
			Replies: []string{
				"疫苗和驱虫都是按时做的，记录都在，见面可以给你看本子。",
				"身体情况都健康，该做的都做了，你可以放心。",
			},
		},
		{
			Keywords: []string{"谢谢", "感谢", "辛苦"},
			Replies: []string{
				"不客气，能给它找到好人家比什么都强～",
				"应该的！有问题随时找我。",
			},
		},
		{
			Keywords:  []string{"好的", "好嘞", "嗯", "ok", "收到", "行"},
			Replies:   []string{"好～", "嗯嗯！", "OK，那就这样说定了。"},
			ShortOnly: true,
		},
	}
}
