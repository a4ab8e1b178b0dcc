package anthropic

import (
	"fmt"
	"strings"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

const newsCheckSystem = `You classify web content for a small community newsletter.
Decide what kind of content an article is. Judge only the content type,
not quality or topic fit. Reply with the requested JSON only.`

const wowFactorSystem = `You judge how remarkable a news story is for a general reader.
Score from 0.0 (mundane, routine) to 1.0 (genuinely astonishing, the kind of
story a reader retells at the dinner table). Judge only how remarkable the
story is, not its topic or values. Reply with the requested JSON only.`

const valuesFitSystem = `You judge whether a news story fits the editorial values of a
family-oriented community newsletter. Score from 0.0 (clear conflict with the
values) to 1.0 (perfect fit). Judge only values fit, not how interesting the
story is. Reply with the requested JSON only.`

const combinedSystem = `You judge news stories for a family-oriented community newsletter
in a single pass. Score from 0.0 to 1.0 how suitable a story is overall,
weighing whether it is real news, how remarkable it is, and how well it fits
the editorial values. Reply with the requested JSON only.`

func newsCheckPrompt(article domain.Article) string {
	var b strings.Builder
	b.WriteString("Classify the following content.\n\n")
	writeArticle(&b, article)
	return b.String()
}

func wowFactorPrompt(article domain.Article) string {
	var b strings.Builder
	b.WriteString("Score how remarkable this story is.\n\n")
	writeArticle(&b, article)
	return b.String()
}

func valuesFitPrompt(article domain.Article, rules domain.PolicyRules) string {
	var b strings.Builder
	b.WriteString("Score how well this story fits the editorial values below.\n\n")
	writeRules(&b, rules)
	writeArticle(&b, article)
	return b.String()
}

func combinedPrompt(article domain.Article, rules domain.PolicyRules) string {
	var b strings.Builder
	b.WriteString("Score the overall suitability of this story. It must be a real news article, remarkable enough to retell, and consistent with the editorial values below.\n\n")
	writeRules(&b, rules)
	writeArticle(&b, article)
	return b.String()
}

func writeArticle(b *strings.Builder, article domain.Article) {
	fmt.Fprintf(b, "Title: %s\n", article.Title)
	if article.URL != "" {
		fmt.Fprintf(b, "URL: %s\n", article.URL)
	}
	fmt.Fprintf(b, "\nContent:\n%s\n", article.Body)
}

func writeRules(b *strings.Builder, rules domain.PolicyRules) {
	if rules.Empty() {
		rules = domain.DefaultPolicyRules()
	}
	if len(rules.MustHave) > 0 {
		b.WriteString("Stories we want:\n")
		for _, rule := range rules.MustHave {
			fmt.Fprintf(b, "- %s\n", rule)
		}
		b.WriteString("\n")
	}
	if len(rules.MustAvoid) > 0 {
		b.WriteString("Stories we avoid:\n")
		for _, rule := range rules.MustAvoid {
			fmt.Fprintf(b, "- %s\n", rule)
		}
		b.WriteString("\n")
	}
}
