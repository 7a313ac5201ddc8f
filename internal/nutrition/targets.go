package nutrition

// WeeklyTargets summarizes the recommended weekly intake per group. It is
// sent as shared context with recommendation and suggestion requests so the
// model reasons against the same targets the classifier was primed with.
const WeeklyTargets = "• Fruits: 10.5–14 cups/week\n" +
	"• Vegetables: 14–21 cups/week (dark-green 1.5, red/orange 5.5, legumes 1.5, starchy 5, other 4)\n" +
	"• Grains: 35–56 ounces/week (≥50% whole grains)\n" +
	"• Protein: 35–45.5 ounces/week (seafood 8, meats/poultry/eggs 26, nuts/seeds/soy 5)\n" +
	"• Dairy: 21 cups/week\n" +
	"• Oils: use healthy oils in moderation"
