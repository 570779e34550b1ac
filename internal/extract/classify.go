package extract

import (
	"regexp"
	"strings"

	"github.com/rcliao/convo-memory/internal/model"
)

// rule assigns typ to text containing any of its Hangul keywords or matching
// its Latin word pattern.
type rule struct {
	typ      model.Type
	keywords []string
	words    *regexp.Regexp
}

// words matches any alternative as a whole word so "name" stays out of
// "username". Stems spell out their suffixes with \w*.
func words(alts ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// rules are evaluated in order; the first match wins. Safety types come
// before profile data so "allergy medication" classifies as the stricter one.
var rules = []rule{
	{model.TypeContraindication,
		[]string{"금기", "주의", "금지", "피해야"},
		words(`contraindicat\w*`, `must not`, `avoid\w*`)},
	{model.TypeAllergy,
		[]string{"알레르기", "과민", "부작용"},
		words(`allerg\w*`, `intoleran\w*`, `side effects?`)},
	{model.TypeMedication,
		[]string{"복용", "투약", "용량", "약"},
		words(`medications?`, `medicines?`, `dosage`, `doses?`, `\d*mg`, `pills?`)},
	{model.TypeChronic,
		[]string{"만성", "진단", "질환", "병력"},
		words(`chronic\w*`, `diagnos\w*`, `diseases?`)},
	{model.TypeDiet,
		[]string{"식단", "사료", "영양제"},
		words(`diet\w*`, `foods?`, `feed(?:s|ing)?`, `supplements?`)},
	{model.TypeProfile,
		[]string{"프로필", "품종", "성별", "중성화", "생일", "연령", "이름", "성격", "몸무게", "체중"},
		words(`profile`, `names?`, `named`, `breeds?`, `neuter\w*`, `spay\w*`, `birthday`,
			`temperament`, `weigh\w*`, `\d*kg`, `age`, `aged`, `years? old`)},
}

// Classify returns the memory type for a normalized line. Lines matching no
// rule are facts.
func Classify(text string) model.Type {
	t := strings.ToLower(text)
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(t, k) {
				return r.typ
			}
		}
		if r.words.MatchString(t) {
			return r.typ
		}
	}
	return model.TypeFact
}
