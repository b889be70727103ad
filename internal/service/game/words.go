package game

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
)

var (
	ErrUnknownCategory = errors.New("词库中不存在该分类")
	ErrNoUnusedWords   = errors.New("该分类下已无未使用的词")
)

// WordBank 是分类到候选词的不可变映射，只提供查询和抽词
type WordBank map[string][]string

// DefaultWordBank 返回内置词库
func DefaultWordBank() WordBank {
	return defaultWordBank
}

var defaultWordBank = WordBank{
	"food": {
		"avocado", "guacamole", "salsa", "hummus", "pasta", "spaghetti", "lasagna",
		"ravioli", "curry", "tikka", "masala", "korma", "muffin", "cupcake", "scone",
		"biscuit", "cheddar", "gouda", "brie", "camembert",
	},
	"animals": {
		"jaguar", "leopard", "cheetah", "panther", "dolphin", "porpoise", "whale",
		"seal", "eagle", "hawk", "falcon", "osprey", "frog", "toad", "salamander",
		"newt", "antelope", "gazelle", "deer", "elk",
	},
	"objects": {
		"hammer", "mallet", "wrench", "pliers", "mug", "cup", "glass", "tumbler",
		"tablet", "phone", "laptop", "e-reader", "backpack", "satchel", "tote",
		"duffel", "candle", "lantern", "flashlight", "torch",
	},
	"geography": {
		"Tokyo", "Seoul", "Beijing", "Bangkok", "Sahara", "Gobi", "Mojave",
		"Kalahari", "Amazon", "Congo", "Nile", "Mississippi", "Everest",
		"Kilimanjaro", "Denali", "Alps", "Venice", "Amsterdam", "Bruges", "Copenhagen",
	},
	"movies": {
		"Inception", "Interstellar", "Tenet", "Memento", "Friends", "Seinfeld",
		"The Office", "Parks & Rec", "Star Wars", "Star Trek", "Guardians", "Dune",
		"Frozen", "Tangled", "Moana", "Encanto", "Breaking Bad", "Ozark", "Narcos",
		"Fargo",
	},
	"colors": {
		"teal", "turquoise", "aqua", "cyan", "maroon", "burgundy", "crimson", "ruby",
		"beige", "tan", "taupe", "khaki", "lavender", "lilac", "violet", "mauve",
		"navy", "indigo", "cobalt", "sapphire",
	},
	"science": {
		"atom", "molecule", "proton", "neutron", "gravity", "magnetism", "inertia",
		"friction", "virus", "bacteria", "fungus", "parasite", "DNA", "RNA", "gene",
		"chromosome", "solid", "liquid", "gas", "plasma",
	},
	"gaming": {
		"bluffing", "deduction", "strategy", "luck", "roleplay", "sandbox", "puzzle",
		"platformer", "cooldown", "buff", "nerf", "debuff", "XP", "level", "rank",
		"prestige", "spawn", "respawn", "camp", "flank",
	},
}

func (wb WordBank) Contains(category string) bool {
	_, ok := wb[category]
	return ok
}

// Categories 返回排序后的分类列表，保证遍历顺序确定
func (wb WordBank) Categories() []string {
	categories := make([]string, 0, len(wb))
	for c := range wb {
		categories = append(categories, c)
	}

	sort.Strings(categories)

	return categories
}

// RandomCategory 均匀随机返回一个分类
func (wb WordBank) RandomCategory() string {
	categories := wb.Categories()
	if len(categories) == 0 {
		return ""
	}

	return categories[rand.Intn(len(categories))]
}

// PickWord 在指定分类中均匀随机抽一个未使用过的词
// used 中保存的是小写形式，比较不区分大小写
func (wb WordBank) PickWord(category string, used map[string]struct{}) (string, error) {
	words, ok := wb[category]
	if !ok {
		return "", ErrUnknownCategory
	}

	available := make([]string, 0, len(words))
	for _, w := range words {
		if _, usedBefore := used[strings.ToLower(w)]; !usedBefore {
			available = append(available, w)
		}
	}

	if len(available) == 0 {
		return "", ErrNoUnusedWords
	}

	return available[rand.Intn(len(available))], nil
}
