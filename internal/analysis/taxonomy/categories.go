package taxonomy

// builtin is the default fashion category taxonomy: 10 slugs with bilingual
// keyword sets. CATEGORY_TAXONOMY_FILE replaces it wholesale when set.
var builtin = []Category{
	{
		Slug: "minimal", Name: "미니멀", Weight: 1.0,
		Keywords: []string{
			"minimal", "minimalism", "minimalist", "simple", "clean", "basic",
			"essentials", "classic", "neutral", "simplicity", "understated",
			"미니멀", "미니멀룩", "심플", "클린", "베이직", "미니멀리스트",
			"미니멀패션", "심플룩", "모던", "깔끔한", "단정한", "미니멀스타일",
		},
	},
	{
		Slug: "streetwear", Name: "스트리트", Weight: 1.0,
		Keywords: []string{
			"streetwear", "street", "urban", "hiphop", "sneakers", "kicks",
			"hypebeast", "supreme", "nike", "adidas", "jordan", "yeezy",
			"오버핏", "스트릿", "스트리트", "힙합", "스니커즈", "스트릿패션",
			"스트리트패션", "오버사이즈", "레이어드", "힙한", "힙스터",
		},
	},
	{
		Slug: "luxury", Name: "럭셔리", Weight: 1.0,
		Keywords: []string{
			"luxury", "lux", "designer", "highfashion", "highend", "premium",
			"chanel", "gucci", "prada", "lv", "louisvuitton", "hermes",
			"럭셔리", "명품", "하이엔드", "디자이너", "명품패션", "고급스러운",
			"프리미엄", "럭셔리패션", "명품스타일", "우아한", "품격있는",
		},
	},
	{
		Slug: "casual", Name: "캐주얼", Weight: 1.0,
		Keywords: []string{
			"casual", "daily", "everyday", "comfy", "comfortable", "relaxed",
			"weekend", "laidback", "effortless", "easy",
			"캐주얼", "데일리", "일상", "편안한", "편한", "캐주얼룩",
			"데일리룩", "일상룩", "편한옷", "캐주얼패션", "일상패션", "휴일룩",
		},
	},
	{
		Slug: "vintage", Name: "빈티지", Weight: 1.0,
		Keywords: []string{
			"vintage", "retro", "old-school", "secondhand", "thrifted",
			"thrift", "antique", "classic", "heritage", "oldschool",
			"빈티지", "레트로", "올드스쿨", "중고", "빈티지룩", "빈티지패션",
			"레트로룩", "레트로패션", "고전적인", "클래식", "옛날",
		},
	},
	{
		Slug: "feminine", Name: "페미닌", Weight: 1.0,
		Keywords: []string{
			"feminine", "girly", "romantic", "elegant", "graceful", "lovely",
			"chic", "dress", "skirt", "floral", "lace", "pink",
			"페미닌", "여성스러운", "로맨틱", "우아한", "귀여운", "러블리",
			"페미닌룩", "페미닌패션", "원피스", "치마", "레이스", "플로럴",
		},
	},
	{
		Slug: "menswear", Name: "남성복", Weight: 1.0,
		Keywords: []string{
			"menswear", "mensfashion", "menstyle", "dapper", "gentleman",
			"suit", "tailored", "formal", "business",
			"남성복", "남성패션", "남자패션", "맨즈웨어", "정장", "수트",
			"신사", "젠틀맨", "맨즈룩", "남친룩", "비즈니스룩", "정장룩",
		},
	},
	{
		Slug: "sportswear", Name: "스포츠웨어", Weight: 1.0,
		Keywords: []string{
			"sportswear", "athleisure", "athletic", "gym", "workout",
			"fitness", "activewear", "running", "training", "sports", "yoga",
			"스포츠웨어", "애슬레저", "운동복", "헬스복", "요가복", "피트니스",
			"운동", "헬스", "러닝", "트레이닝", "홈트", "애슬레저룩",
		},
	},
	{
		Slug: "bohemian", Name: "보헤미안", Weight: 1.0,
		Keywords: []string{
			"bohemian", "boho", "hippie", "ethnic", "tribal", "festival",
			"freespirit", "flowy", "maxi", "natural", "earthy",
			"보헤미안", "보호", "힙피", "에스닉", "자유로운", "페스티벌",
			"보헤미안룩", "보헤미안패션", "맥시", "자연스러운", "내추럴",
		},
	},
	{
		Slug: "preppy", Name: "프레피", Weight: 1.0,
		Keywords: []string{
			"preppy", "ivy", "college", "academic", "classic", "polo",
			"sweater", "blazer", "oxford", "loafer", "plaid", "tartan",
			"프레피", "아이비", "대학생", "아카데믹", "클래식", "폴로",
			"스웨터", "블레이저", "플레드", "체크", "학생룩", "캠퍼스룩",
		},
	},
}
