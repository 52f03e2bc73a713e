package catalog

// Keywords is the keyword table, in completion order.
var Keywords = []Keyword{
	{
		Name:        "const",
		Description: "声明一个常量。",
		Example:     "const a = 1;",
	},
	{
		Name:        "var",
		Description: "声明一个变量。",
		Example:     "var a = 1;",
	},
	{
		Name:        "if",
		Description: "分支结构语句。",
		Gloss:       "如果 < > 那么",
		Example:     `if (a > 1) { looks_say("a is greater than 1"); /* 或其他事 */ }`,
	},
	{
		Name:        "else",
		Description: "分支结构语句。",
		Gloss:       "否则",
		Example:     `if (a > 1) {/* 做些事 */} else { looks_say("a is less than or equal to 1"); /* 或其他事 */ }`,
	},
	{
		Name:        "while",
		Description: "循环结构语句。",
		Gloss:       "重复执行直到 << > 不成立>",
		Example:     `while (a > 1) { looks_say("a is greater than 1"); /* 改变a */ }`,
	},
	{
		Name:        "until",
		Description: "循环结构语句。",
		Gloss:       "重复执行直到 < >",
		Example:     `until (a <= 1) { looks_say("a is greater than 1"); /* 改变a */ }`,
	},
	{
		Name:        "true",
		Description: "布尔字面量“true”。表示真。",
	},
	{
		Name:        "false",
		Description: "布尔字面量“false”。表示假。",
	},
	{
		Name:        "function",
		Description: "函数定义。",
		Example:     `function myFunction() { looks_say("Hello, world!"); }`,
	},
	{
		Name:        "clone",
		Description: "克隆角色。",
		Example:     "clone { /* 让克隆出的角色执行 */ }",
	},
	{
		Name:        "array",
		Description: "创建数组。",
		Example:     "array a = [1, 2, 3];",
	},
	{
		Name:        "delete",
		Description: "删除数组的元素。",
		Example:     "delete a[1];",
	},
	{
		Name:        "for",
		Description: "数组遍历。",
		Example:     "for (i = anArray) { looks_say(i); /* 或其他事 */ }",
	},
	{
		Name:        "attribute",
		Description: "修改函数属性。",
		Example:     "function attribute(norefresh) noRefreshFunction() { /* 做一些事 */ }",
	},
}
